package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/sutenshah/ultra-events/internal/helpers"
	"github.com/sutenshah/ultra-events/internal/middleware"
	"github.com/sutenshah/ultra-events/internal/models"
)

type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var admin models.Admin
	err := db.WithContext(c.Request.Context()).
		Where("username = ? AND is_active = ?", req.Username, true).
		First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials.")
		return
	}
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to look up account.")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials.")
		return
	}

	token, err := middleware.GenerateAdminToken(admin.ID, admin.Username, admin.Role)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate token.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"admin": gin.H{
			"username":  admin.Username,
			"full_name": admin.FullName,
			"role":      admin.Role,
		},
	})
}

func AdminMe(c *gin.Context) {
	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var admin models.Admin
	err := db.WithContext(c.Request.Context()).
		First(&admin, "id = ?", middleware.GetAdminID(c)).Error
	if err != nil {
		helpers.RespondWithError(c, http.StatusNotFound, "Account not found.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"admin": gin.H{
			"id":        admin.ID,
			"username":  admin.Username,
			"full_name": admin.FullName,
			"role":      admin.Role,
			"is_active": admin.IsActive,
		},
	})
}

// AdminDashboard aggregates the numbers the back office watches: sales,
// revenue and door throughput, overall and for today.
func AdminDashboard(c *gin.Context) {
	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	ctx := c.Request.Context()
	today := time.Now().Truncate(24 * time.Hour)

	var (
		totalOrders     int64
		completedOrders int64
		pendingOrders   int64
		failedOrders    int64
		scannedTickets  int64
		todayOrders     int64
		todayScans      int64
		revenue         float64
		todayRevenue    float64
	)

	orders := func() *gorm.DB { return db.WithContext(ctx).Model(&models.Order{}) }
	orders().Count(&totalOrders)
	orders().Where("status = ?", models.OrderStatusCompleted).Count(&completedOrders)
	orders().Where("status = ?", models.OrderStatusPending).Count(&pendingOrders)
	orders().Where("status = ?", models.OrderStatusFailed).Count(&failedOrders)
	orders().Where("is_scanned = ?", true).Count(&scannedTickets)
	orders().Where("created_at >= ?", today).Count(&todayOrders)
	orders().Where("is_scanned = ? AND scanned_at >= ?", true, today).Count(&todayScans)
	orders().Where("status = ?", models.OrderStatusCompleted).
		Select("COALESCE(SUM(amount), 0)").Scan(&revenue)
	orders().Where("status = ? AND created_at >= ?", models.OrderStatusCompleted, today).
		Select("COALESCE(SUM(amount), 0)").Scan(&todayRevenue)

	var activeEvents int64
	db.WithContext(ctx).Model(&models.Event{}).
		Where("is_active = ? AND date >= ?", true, today).
		Count(&activeEvents)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats": gin.H{
			"total_orders":     totalOrders,
			"completed_orders": completedOrders,
			"pending_orders":   pendingOrders,
			"failed_orders":    failedOrders,
			"scanned_tickets":  scannedTickets,
			"active_events":    activeEvents,
			"revenue":          revenue,
			"today": gin.H{
				"orders":  todayOrders,
				"scans":   todayScans,
				"revenue": todayRevenue,
			},
		},
	})
}

type CreateAdminRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	FullName string `json:"full_name" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=scanner admin superadmin"`
}

// CreateAdmin registers a staff account; superadmin only.
func CreateAdmin(c *gin.Context) {
	var req CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var existing models.Admin
	if result := db.WithContext(c.Request.Context()).
		Where("username = ?", req.Username).First(&existing); result.Error == nil {
		helpers.RespondWithError(c, http.StatusConflict, "Username already taken.")
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to hash the password.")
		return
	}

	admin := models.Admin{
		Username:     req.Username,
		FullName:     req.FullName,
		PasswordHash: string(hashedPassword),
		Role:         req.Role,
		IsActive:     true,
	}
	if err := db.WithContext(c.Request.Context()).Create(&admin).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create account.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Staff account created successfully.",
		"admin": gin.H{
			"id":       admin.ID,
			"username": admin.Username,
			"role":     admin.Role,
		},
	})
}

type UpdateAdminRequest struct {
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
	Role     *string `json:"role" binding:"omitempty,oneof=scanner admin superadmin"`
	IsActive *bool   `json:"is_active"`
}

func UpdateAdmin(c *gin.Context) {
	var req UpdateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var admin models.Admin
	err := db.WithContext(c.Request.Context()).First(&admin, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		helpers.RespondWithError(c, http.StatusNotFound, "Account not found.")
		return
	}
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch account.")
		return
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to hash the password.")
			return
		}
		updates["password_hash"] = string(hashed)
	}
	if len(updates) == 0 {
		helpers.RespondWithError(c, http.StatusBadRequest, "No fields to update.")
		return
	}

	if err := db.WithContext(c.Request.Context()).Model(&admin).Updates(updates).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update account.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Staff account updated.",
	})
}

// DeactivateAdmin disables a staff account without deleting its audit
// trail in scanned_by.
func DeactivateAdmin(c *gin.Context) {
	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	result := db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", c.Param("id")).
		Update("is_active", false)
	if result.Error != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to deactivate account.")
		return
	}
	if result.RowsAffected == 0 {
		helpers.RespondWithError(c, http.StatusNotFound, "Account not found.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Staff account deactivated.",
	})
}

func ListAdmins(c *gin.Context) {
	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var admins []models.Admin
	if err := db.WithContext(c.Request.Context()).Order("created_at ASC").Find(&admins).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch accounts.")
		return
	}

	out := make([]gin.H, 0, len(admins))
	for _, admin := range admins {
		out = append(out, gin.H{
			"id":        admin.ID,
			"username":  admin.Username,
			"full_name": admin.FullName,
			"role":      admin.Role,
			"is_active": admin.IsActive,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "admins": out})
}
