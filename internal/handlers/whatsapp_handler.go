package handlers

import (
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/sutenshah/ultra-events/internal/helpers"
	"github.com/sutenshah/ultra-events/internal/middleware"
	"github.com/sutenshah/ultra-events/internal/whatsapp"
)

// VerifyWhatsAppWebhook answers Meta's subscription handshake: echo the
// challenge when the verify token matches.
func VerifyWhatsAppWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == os.Getenv("WHATSAPP_VERIFY_TOKEN") {
		c.String(http.StatusOK, challenge)
		return
	}
	helpers.RespondWithError(c, http.StatusForbidden, "Verification failed.")
}

// ReceiveWhatsAppMessage ingests inbound messages. Always 200: a non-2xx
// makes Meta resend the batch, and the conversation machine plus the
// session-token idempotence downstream make redelivery safe anyway.
func ReceiveWhatsAppMessage(c *gin.Context) {
	var payload whatsapp.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	svc := middleware.GetServices(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Services not configured.")
		return
	}

	for _, msg := range payload.ExtractMessages() {
		text := msg.MessageText()
		if text == "" {
			continue
		}
		if err := svc.Chat.HandleMessage(c.Request.Context(), msg.From, text); err != nil {
			log.Printf("whatsapp: handle message from %s: %v", msg.From, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
