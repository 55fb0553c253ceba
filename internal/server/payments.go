package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/rentpay/internal/payment/domain"
)

type updatePaymentRequest struct {
	PaymentIntentID   string         `json:"paymentIntentId"`
	Amount            int64          `json:"amount"`
	Status            string         `json:"status"`
	StripeEventType   string         `json:"stripeEventType"`
	TenantID          string         `json:"tenantId"`
	TenantEmail       string         `json:"tenantEmail"`
	PropertyID        string         `json:"propertyId"`
	PropertyOwnerID   string         `json:"propertyOwnerId"`
	RentMonth         string         `json:"rentMonth"`
	RentAmount        int64          `json:"rentAmount"`
	AdditionalCharges int64          `json:"additionalCharges"`
	InitialLateFee    int64          `json:"initialLateFee"`
	DailyLateFee      int64          `json:"dailyLateFee"`
	PaymentMethodType string         `json:"paymentMethodType"`
	PaymentMethod     string         `json:"paymentMethod"`
	PaymentDetails    map[string]any `json:"paymentMethodDetails"`
	ReceiptURL        string         `json:"receiptUrl"`
}

func (r updatePaymentRequest) record() paymentdomain.Record {
	return paymentdomain.Record{
		PaymentIntentID:      strings.TrimSpace(r.PaymentIntentID),
		Amount:               r.Amount,
		Status:               r.Status,
		StripeEventType:      r.StripeEventType,
		TenantID:             r.TenantID,
		TenantEmail:          r.TenantEmail,
		PropertyID:           r.PropertyID,
		PropertyOwnerID:      r.PropertyOwnerID,
		RentMonth:            r.RentMonth,
		RentAmount:           r.RentAmount,
		AdditionalCharges:    r.AdditionalCharges,
		InitialLateFee:       r.InitialLateFee,
		DailyLateFee:         r.DailyLateFee,
		PaymentMethodType:    r.PaymentMethodType,
		PaymentMethod:        r.PaymentMethod,
		PaymentMethodDetails: r.PaymentDetails,
		ReceiptURL:           r.ReceiptURL,
	}
}

// UpdatePayment merges an already normalized record sent by the web app.
func (s *Server) UpdatePayment(c *gin.Context) {
	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.PaymentIntentID) == "" {
		AbortWithError(c, newValidationError("paymentIntentId", "invalid_payment_intent_id", "paymentIntentId is required"))
		return
	}

	result := s.recorder.Save(c.Request.Context(), req.record())
	if !result.OK() {
		AbortWithError(c, result.Err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": result.DocumentID})
}

func (s *Server) GetPayment(c *gin.Context) {
	doc, err := s.recorder.Find(c.Request.Context(), c.Param("collection"), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": doc})
}

// ResyncPayment re-records a payment intent from the provider's current state.
func (s *Server) ResyncPayment(c *gin.Context) {
	result := s.recorder.Resync(c.Request.Context(), c.Param("id"))
	if !result.OK() {
		AbortWithError(c, result.Err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"id":         result.DocumentID,
		"collection": result.Collection,
	})
}
