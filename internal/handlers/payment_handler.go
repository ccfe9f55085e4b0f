package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/sutenshah/ultra-events/internal/helpers"
	"github.com/sutenshah/ultra-events/internal/middleware"
	"github.com/sutenshah/ultra-events/internal/monitoring"
	"github.com/sutenshah/ultra-events/internal/ordering"
	"github.com/sutenshah/ultra-events/internal/payment"
)

type razorpayWebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		PaymentLink struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"payment_link"`
		Payment struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// RazorpayWebhook is the fast payment signal. Any response other than 200
// makes the provider retry, so parse failures and unknown references are
// acknowledged and logged, never errored. The apply step downstream is
// idempotent, so a replayed webhook is harmless.
func RazorpayWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	if secret := os.Getenv("RAZORPAY_WEBHOOK_SECRET"); secret != "" {
		signature := c.GetHeader("X-Razorpay-Signature")
		if !payment.VerifyWebhookSignature(body, signature, secret) {
			log.Printf("webhook: bad signature, ignoring")
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
	}

	var payload razorpayWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Printf("webhook: unparseable body: %v", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if payload.Event != "payment_link.paid" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	reference := payload.Payload.PaymentLink.Entity.ID
	paymentID := payload.Payload.Payment.Entity.ID
	if reference == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	svc := middleware.GetServices(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return
	}

	monitoring.TrackPaymentSignal("webhook")
	err = svc.Orders.ApplyPaymentSuccessByReference(c.Request.Context(), reference, paymentID)
	if errors.Is(err, ordering.ErrOrderNotFound) {
		log.Printf("webhook: no order for reference %s", reference)
	} else if err != nil {
		log.Printf("webhook: apply payment for %s: %v", reference, err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// PaymentCallback handles the browser redirect after checkout. Unlike the
// webhook it carries a user-forgeable URL, so the signature is mandatory
// and the payment is only applied when it checks out.
func PaymentCallback(c *gin.Context) {
	reference := c.Query("razorpay_payment_link_id")
	paymentID := c.Query("razorpay_payment_id")
	status := c.Query("razorpay_payment_link_status")
	signature := c.Query("razorpay_signature")

	if reference == "" || paymentID == "" {
		helpers.RespondWithError(c, http.StatusBadRequest, "Missing payment parameters.")
		return
	}

	secret := os.Getenv("RAZORPAY_KEY_SECRET")
	if !payment.VerifyCallbackSignature(reference, paymentID, signature, secret) {
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid payment signature.")
		return
	}

	if status != "paid" {
		c.String(http.StatusOK, "Payment not completed yet. You can close this page and retry from WhatsApp.")
		return
	}

	svc := middleware.GetServices(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return
	}

	monitoring.TrackPaymentSignal("callback")
	err := svc.Orders.ApplyPaymentSuccessByReference(c.Request.Context(), reference, paymentID)
	if errors.Is(err, ordering.ErrOrderNotFound) {
		helpers.RespondWithError(c, http.StatusNotFound, "Order not found.")
		return
	}
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to confirm payment.")
		return
	}

	c.String(http.StatusOK, "Payment received! Your ticket is on its way to you on WhatsApp. 🎟️")
}

type VerifyOrderRequest struct {
	Reference string `json:"razorpay_payment_link_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

// VerifyOrder lets the checkout frontend report a finished payment
// directly. Same signature scheme as the redirect callback.
func VerifyOrder(c *gin.Context) {
	var req VerifyOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	secret := os.Getenv("RAZORPAY_KEY_SECRET")
	if !payment.VerifyCallbackSignature(req.Reference, req.PaymentID, req.Signature, secret) {
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid payment signature.")
		return
	}

	svc := middleware.GetServices(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return
	}

	monitoring.TrackPaymentSignal("verify")
	err := svc.Orders.ApplyPaymentSuccessByReference(c.Request.Context(), req.Reference, req.PaymentID)
	if errors.Is(err, ordering.ErrOrderNotFound) {
		helpers.RespondWithError(c, http.StatusNotFound, "Order not found.")
		return
	}
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to confirm payment.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment verified. Your ticket is on its way.",
	})
}

// CheckPayment polls the provider for one reference on demand, the manual
// twin of the reconciliation sweep.
func CheckPayment(c *gin.Context) {
	reference := c.Param("reference")
	svc := middleware.GetServices(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return
	}

	result, err := svc.Gateway.CheckStatus(c.Request.Context(), reference)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadGateway, "Payment provider is unavailable.")
		return
	}

	if result.Paid {
		monitoring.TrackPaymentSignal("manual_check")
		err = svc.Orders.ApplyPaymentSuccessByReference(c.Request.Context(), reference, result.PaymentID)
		if err != nil && !errors.Is(err, ordering.ErrOrderNotFound) {
			helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to apply payment.")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"paid":    result.Paid,
		"status":  result.Status,
	})
}
