package handlers

import (
	"errors"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sutenshah/ultra-events/internal/helpers"
	"github.com/sutenshah/ultra-events/internal/middleware"
	"github.com/sutenshah/ultra-events/internal/models"
	"github.com/sutenshah/ultra-events/internal/ordering"
)

type CreateUserRequest struct {
	FullName    string `json:"full_name" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Email       string `json:"email"`
}

// CreateUser upserts on phone number, the natural key for a WhatsApp
// customer base.
func CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	db := middleware.GetDB(c)
	if db == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	phone := models.NormalizePhone(req.PhoneNumber)
	var user models.User
	err := db.WithContext(c.Request.Context()).Where("phone_number = ?", phone).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = models.User{FullName: req.FullName, PhoneNumber: phone, Email: req.Email}
		if err := db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create user.")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "user": user})
		return
	}
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to look up user.")
		return
	}

	updates := map[string]interface{}{"full_name": req.FullName}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if err := db.WithContext(c.Request.Context()).Model(&user).Updates(updates).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to update user.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// ShowTicketForm renders the minimal booking form reached from the link
// sent in chat.
func ShowTicketForm(c *gin.Context) {
	phone := c.Query("phone")
	token := c.Query("token")
	if phone == "" || token == "" {
		helpers.RespondWithError(c, http.StatusBadRequest, "Missing form parameters.")
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, ticketFormHTML, html.EscapeString(phone), html.EscapeString(token))
}

type TicketFormSubmission struct {
	Phone    string `form:"phone" json:"phone" binding:"required"`
	Token    string `form:"token" json:"token" binding:"required"`
	FullName string `form:"full_name" json:"full_name" binding:"required"`
	Email    string `form:"email" json:"email" binding:"required"`
}

// SubmitTicketForm finishes a booking started in chat. A resubmitted form
// carries the same session token and lands on the same order.
func SubmitTicketForm(c *gin.Context) {
	var req TicketFormSubmission
	if err := c.ShouldBind(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	svc := middleware.GetServices(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return
	}

	order, err := svc.Chat.HandleFormSubmission(c.Request.Context(), req.Phone, req.Token, req.FullName, req.Email)
	switch {
	case errors.Is(err, ordering.ErrOrderNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, "This booking session has expired. Start again from WhatsApp.")
		return
	case errors.Is(err, ordering.ErrInventoryExhausted):
		helpers.RespondWithError(c, http.StatusConflict, "This ticket type just sold out.")
		return
	case errors.Is(err, ordering.ErrGatewayUnavailable):
		helpers.RespondWithError(c, http.StatusBadGateway, "Payment provider is unavailable. Please try again.")
		return
	case err != nil:
		helpers.RespondWithError(c, http.StatusBadRequest, "Could not complete the booking. Please check your details.")
		return
	}

	if c.ContentType() == "application/json" {
		c.JSON(http.StatusOK, gin.H{
			"success":      true,
			"order_number": order.OrderNumber,
			"pay_url":      order.PayURL,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, order.PayURL)
}

const ticketFormHTML = `<!DOCTYPE html>
<html>
<head><meta name="viewport" content="width=device-width, initial-scale=1"><title>Complete Your Booking</title></head>
<body style="font-family:sans-serif;max-width:420px;margin:2em auto;padding:0 1em">
<h2>Complete Your Booking</h2>
<form method="POST" action="/ticket-form">
<input type="hidden" name="phone" value="%s">
<input type="hidden" name="token" value="%s">
<p><label>Full Name<br><input name="full_name" required style="width:100%%"></label></p>
<p><label>Email<br><input name="email" type="email" required style="width:100%%"></label></p>
<p><button type="submit">Continue to Payment</button></p>
</form>
</body>
</html>`
