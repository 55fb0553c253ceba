package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/rentpay/internal/payment/adapters/stripe"
	paymentdomain "github.com/smallbiznis/rentpay/internal/payment/domain"
	"github.com/smallbiznis/rentpay/pkg/log"
	"go.uber.org/zap"
)

const maxWebhookBodyBytes = 1 << 20

// HandlePaymentWebhook acknowledges every verified delivery. Only a failed
// signature check is reported back to the provider.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		webhookError(c, err)
		return
	}

	err = s.paymentSvc.Receive(c.Request.Context(), payload, c.GetHeader(stripe.SignatureHeader))
	if err != nil {
		if errors.Is(err, paymentdomain.ErrInvalidSignature) {
			webhookError(c, err)
			return
		}
		log.L(c.Request.Context()).Error("webhook receive failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func webhookError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.String(http.StatusBadRequest, "Webhook Error: %s", err.Error())
	c.Abort()
}
