package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleScanner    = "scanner"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

type Admin struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"not null;default:'scanner'" json:"role"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (admin *Admin) BeforeCreate(tx *gorm.DB) (err error) {
	if admin.ID == uuid.Nil {
		admin.ID = uuid.New()
	}
	return
}
