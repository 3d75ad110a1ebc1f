package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatcommerce/internal/conversation"
	"chatcommerce/internal/domain"
	"chatcommerce/internal/payment"
)

const maxWebhookBody = 1 << 20

func verifyWebhookHandler(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token != "" && c.Query("hub.mode") == "subscribe" && c.Query("hub.verify_token") == token {
			c.String(http.StatusOK, c.Query("hub.challenge"))
			return
		}
		c.Status(http.StatusForbidden)
	}
}

// receiveWebhookHandler acknowledges every well-formed delivery. Processing
// failures are logged and reported to the customer by the router; returning
// an error here would only make the platform redeliver.
func receiveWebhookHandler(logger *log.Logger, events eventHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var env conversation.Envelope
		if err := c.ShouldBindJSON(&env); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
		if err := events.Handle(context.WithoutCancel(c.Request.Context()), env); err != nil {
			logger.Printf("handle webhook: %v", err)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func razorpayWebhookHandler(logger *log.Logger, orders orderService, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
			return
		}
		if err := payment.VerifySignature(body, c.GetHeader(payment.SignatureHeader), secret); err != nil {
			logger.Printf("payment webhook rejected: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		ev, err := payment.ParseEvent(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}

		ref, contact, ok := ev.Paid()
		if !ok {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		orderID, err := orders.ConfirmOrder(context.WithoutCancel(c.Request.Context()), contact, ref, domain.PaymentMethodPayNow)
		switch {
		case errors.Is(err, domain.ErrPendingOrderNotFound):
			logger.Printf("payment for %s ignored: no pending order", ref)
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		case err != nil:
			logger.Printf("confirm paid order %s: %v", ref, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "confirmation failed"})
		default:
			c.JSON(http.StatusOK, gin.H{"status": "confirmed", "order_id": orderID})
		}
	}
}
