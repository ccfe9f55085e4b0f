package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/sutenshah/ultra-events/internal/helpers"
	"github.com/sutenshah/ultra-events/internal/middleware"
	"github.com/sutenshah/ultra-events/internal/models"
)

type TicketTypeRequest struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price" binding:"required"`
	Quantity int             `json:"quantity" binding:"required"`
}

type EventRequest struct {
	Name        string              `json:"name" binding:"required"`
	Date        time.Time           `json:"date" binding:"required"`
	EventTime   string              `json:"event_time"`
	Venue       string              `json:"venue" binding:"required"`
	Description string              `json:"description"`
	ImageURL    string              `json:"image_url"`
	TicketTypes []TicketTypeRequest `json:"ticket_types" binding:"required,min=1"`
}

func ListEvents(c *gin.Context) {
	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	query := db.WithContext(c.Request.Context()).Preload("TicketTypes").Order("date ASC")
	if c.Query("all") != "true" {
		query = query.Where("is_active = ? AND date >= ?", true, time.Now().Truncate(24*time.Hour))
	}

	var events []models.Event
	if err := query.Find(&events).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch events.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"events":  events,
	})
}

func GetEvent(c *gin.Context) {
	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	param := c.Param("id")
	where, value := "id = ?", param
	if strings.HasPrefix(strings.ToUpper(param), "EVT-") {
		where, value = "code = ?", strings.ToUpper(param)
	}

	var event models.Event
	err := db.WithContext(c.Request.Context()).Preload("TicketTypes").
		First(&event, where, value).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		helpers.RespondWithError(c, http.StatusNotFound, "Event not found.")
		return
	}
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch event.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"event":   event,
	})
}

// CreateEvent registers an event with its ticket tiers and mints the
// printable QR: a wa.me deep link that opens the business chat with
// "book event <code>" prefilled.
func CreateEvent(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	code, err := generateEventCode()
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate event code.")
		return
	}
	qrData, err := buildEventQR(code)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate event QR.")
		return
	}

	event := models.Event{
		Name:        req.Name,
		Code:        code,
		Date:        req.Date,
		EventTime:   req.EventTime,
		Venue:       req.Venue,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		QRData:      qrData,
		IsActive:    true,
	}
	for _, tt := range req.TicketTypes {
		event.TicketTypes = append(event.TicketTypes, models.TicketType{
			Name:              tt.Name,
			Price:             tt.Price,
			AvailableQuantity: tt.Quantity,
			TotalQuantity:     tt.Quantity,
		})
	}

	if err := db.WithContext(c.Request.Context()).Create(&event).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create event.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Event created successfully.",
		"event":   event,
	})
}

func UpdateEvent(c *gin.Context) {
	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var event models.Event
	err := db.WithContext(c.Request.Context()).First(&event, "id = ?", c.Param("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		helpers.RespondWithError(c, http.StatusNotFound, "Event not found.")
		return
	}
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch event.")
		return
	}

	var req struct {
		Name        *string    `json:"name"`
		Date        *time.Time `json:"date"`
		EventTime   *string    `json:"event_time"`
		Venue       *string    `json:"venue"`
		Description *string    `json:"description"`
		ImageURL    *string    `json:"image_url"`
		IsActive    *bool      `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Date != nil {
		updates["date"] = *req.Date
	}
	if req.EventTime != nil {
		updates["event_time"] = *req.EventTime
	}
	if req.Venue != nil {
		updates["venue"] = *req.Venue
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.ImageURL != nil {
		updates["image_url"] = *req.ImageURL
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		helpers.RespondWithError(c, http.StatusBadRequest, "No fields to update.")
		return
	}

	if err := db.WithContext(c.Request.Context()).Model(&event).Updates(updates).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update event.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Event updated successfully.",
		"event":   event,
	})
}

// DeleteEvent deactivates rather than deletes: completed orders keep
// pointing at a real event row.
func DeleteEvent(c *gin.Context) {
	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	result := db.WithContext(c.Request.Context()).Model(&models.Event{}).
		Where("id = ?", c.Param("id")).
		Update("is_active", false)
	if result.Error != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to delete event.")
		return
	}
	if result.RowsAffected == 0 {
		helpers.RespondWithError(c, http.StatusNotFound, "Event not found.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Event deactivated successfully.",
	})
}

func generateEventCode() (string, error) {
	id, err := helpers.GenerateShortID(3)
	if err != nil {
		return "", err
	}
	return "EVT-" + strings.ToUpper(id), nil
}

func buildEventQR(code string) (string, error) {
	business := os.Getenv("WHATSAPP_BUSINESS_NUMBER")
	link := fmt.Sprintf("https://wa.me/%s?text=%s",
		business, url.QueryEscape("book event "+code))
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
