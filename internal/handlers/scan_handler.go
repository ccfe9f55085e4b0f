package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sutenshah/ultra-events/internal/helpers"
	"github.com/sutenshah/ultra-events/internal/middleware"
	"github.com/sutenshah/ultra-events/internal/scan"
)

type ValidateTicketRequest struct {
	QRData string `json:"qr_data" binding:"required"`
}

// ValidateTicket is phase one of the door protocol: look the credential
// up, show the operator who the ticket belongs to, change nothing.
func ValidateTicket(c *gin.Context) {
	var req ValidateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	svc := middleware.GetServices(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return
	}

	detail, err := svc.Scanner.Validate(c.Request.Context(), req.QRData)
	switch {
	case errors.Is(err, scan.ErrInvalidCredential):
		helpers.RespondWithError(c, http.StatusBadRequest, "Unrecognized QR code.")
		return
	case errors.Is(err, scan.ErrTicketNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, "Ticket not found.")
		return
	case errors.Is(err, scan.ErrPaymentIncomplete):
		c.JSON(http.StatusOK, gin.H{
			"success": false,
			"valid":   false,
			"message": "Payment for this ticket is not completed.",
			"ticket":  detail,
		})
		return
	case err != nil:
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to validate ticket.")
		return
	}

	message := "Ticket is valid."
	if detail.Scanned {
		message = "Ticket was already scanned."
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"valid":   !detail.Scanned,
		"message": message,
		"ticket":  detail,
	})
}

type ConfirmScanRequest struct {
	OrderID uuid.UUID `json:"order_id" binding:"required"`
}

// ConfirmScan is phase two: redeem the ticket. The operator name recorded
// against the scan comes from the authenticated token, not the request.
func ConfirmScan(c *gin.Context) {
	var req ConfirmScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	svc := middleware.GetServices(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return
	}

	operator := middleware.GetAdminUsername(c)
	detail, err := svc.Scanner.Confirm(c.Request.Context(), req.OrderID, operator)
	switch {
	case errors.Is(err, scan.ErrTicketNotFound):
		helpers.RespondWithError(c, http.StatusNotFound, "Ticket not found.")
		return
	case errors.Is(err, scan.ErrPaymentIncomplete):
		helpers.RespondWithError(c, http.StatusConflict, "Payment for this ticket is not completed.")
		return
	case errors.Is(err, scan.ErrAlreadyScanned):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"message": "Ticket was already scanned.",
			"ticket":  detail,
		})
		return
	case err != nil:
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to confirm scan.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Entry confirmed. Welcome in!",
		"ticket":  detail,
	})
}
