package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sutenshah/ultra-events/internal/helpers"
	"github.com/sutenshah/ultra-events/internal/middleware"
	"github.com/sutenshah/ultra-events/internal/models"
	"github.com/sutenshah/ultra-events/internal/ordering"
)

type CreateOrderRequest struct {
	UserID       uuid.UUID `json:"user_id" binding:"required"`
	EventID      uuid.UUID `json:"event_id" binding:"required"`
	TicketTypeID uuid.UUID `json:"ticket_type_id" binding:"required"`
	SessionToken string    `json:"session_token"`
}

func CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	svc := middleware.GetServices(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return
	}

	order, err := svc.Orders.Create(c.Request.Context(), ordering.CreateParams{
		UserID:       req.UserID,
		EventID:      req.EventID,
		TicketTypeID: req.TicketTypeID,
		SessionToken: req.SessionToken,
	})
	switch {
	case errors.Is(err, ordering.ErrTicketTypeNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, "Ticket type not found.")
		return
	case errors.Is(err, ordering.ErrInventoryExhausted):
		helpers.RespondWithError(c, http.StatusConflict, "This ticket type is sold out.")
		return
	case errors.Is(err, ordering.ErrGatewayUnavailable):
		helpers.RespondWithError(c, http.StatusBadGateway, "Payment provider is unavailable. Please try again.")
		return
	case err != nil:
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create order.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"message":      "Order created successfully.",
		"order_number": order.OrderNumber,
		"order_id":     order.ID,
		"amount":       order.Amount,
		"status":       order.Status,
		"pay_url":      order.PayURL,
	})
}

func GetOrder(c *gin.Context) {
	svc := middleware.GetServices(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return
	}

	order, err := svc.Orders.GetByOrderNumber(c.Request.Context(), c.Param("orderNumber"))
	if errors.Is(err, ordering.ErrOrderNotFound) {
		helpers.RespondWithError(c, http.StatusNotFound, "Order not found.")
		return
	}
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch order.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   order,
	})
}

// ListOrders is the staff order search: filter by status, event or phone.
func ListOrders(c *gin.Context) {
	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	query := db.WithContext(c.Request.Context()).
		Preload("User").Preload("Event").Preload("TicketType").
		Order("created_at DESC").
		Limit(100)

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if eventID := c.Query("event_id"); eventID != "" {
		query = query.Where("event_id = ?", eventID)
	}
	if phone := c.Query("phone"); phone != "" {
		query = query.Joins("JOIN users ON users.id = orders.user_id").
			Where("users.phone_number = ?", models.NormalizePhone(phone))
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch orders.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orders":  orders,
		"count":   len(orders),
	})
}

// GetOrderTicket returns the QR image for a completed order, used to
// resend a ticket manually.
func GetOrderTicket(c *gin.Context) {
	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var order models.Order
	err := db.WithContext(c.Request.Context()).
		Where("order_number = ?", c.Param("orderNumber")).
		Order("created_at DESC").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		helpers.RespondWithError(c, http.StatusNotFound, "Order not found.")
		return
	}
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to fetch order.")
		return
	}
	if order.Status != models.OrderStatusCompleted {
		helpers.RespondWithError(c, http.StatusConflict, "Order payment is not completed.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"order_number": order.OrderNumber,
		"qr_payload":   order.QRPayload,
		"qr_image":     order.QRImage,
	})
}
