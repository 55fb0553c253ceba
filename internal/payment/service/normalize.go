package service

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/smallbiznis/rentpay/internal/payment/domain"
)

// normalize maps a classified payload onto the stored record and picks the
// partition and document key for it.
func normalize(eventType domain.EventType, payload domain.Payload) (domain.Record, string, string) {
	if payload.HasMetadata() {
		record := fromMetadata(eventType, payload)
		return record, domain.CollectionRents, payload.PaymentIntent.String()
	}
	record := bare(eventType, payload)
	return record, domain.CollectionRentalPayments, strings.TrimSpace(payload.ID)
}

func fromMetadata(eventType domain.EventType, payload domain.Payload) domain.Record {
	md := payload.Metadata
	tenantID := md.Get("tenantId")

	record := domain.Record{
		PaymentIntentID:   payload.PaymentIntent.String(),
		Amount:            firstNonZero(payload.AmountTotal, payload.Amount),
		Status:            firstNonEmpty(payload.Status, payload.PaymentStatus),
		Method:            domain.MethodStripe,
		StripeEventType:   eventType.String(),
		TenantID:          tenantID,
		TenantEmail:       tenantEmail(payload),
		PropertyID:        md.Get("propertyId"),
		PropertyOwnerID:   md.Get("propertyOwnerId"),
		RentMonth:         md.Get("rentMonth"),
		RentAmount:        parseMinor(md.Get("rentAmount")),
		AdditionalCharges: parseMinor(md.Get("additionalCharges")),
		InitialLateFee:    parseMinor(md.Get("initialLateFee")),
		DailyLateFee:      parseMinor(md.Get("dailyLateFee")),
		PaymentMethodType: firstKey(payload.PaymentMethodOptions),
		CreatedBy:         tenantID,
		UpdatedBy:         tenantID,
	}
	withCharge(&record, payload)
	return record
}

func bare(eventType domain.EventType, payload domain.Payload) domain.Record {
	record := domain.Record{
		PaymentIntentID: strings.TrimSpace(payload.ID),
		Amount:          firstNonZero(payload.Amount, payload.AmountTotal),
		Status:          firstNonEmpty(payload.Status, payload.PaymentStatus),
		Method:          domain.MethodStripe,
		StripeEventType: eventType.String(),
	}
	withCharge(&record, payload)
	return record
}

func withCharge(record *domain.Record, payload domain.Payload) {
	record.PaymentMethod = payload.PaymentMethod.String()
	record.PaymentMethodDetails = payload.PaymentMethodDetails
	record.ReceiptURL = strings.TrimSpace(payload.ReceiptURL)
}

func tenantEmail(payload domain.Payload) string {
	if value := payload.Metadata.Get("customer_email", "tenantEmail"); value != "" {
		return value
	}
	if value := strings.TrimSpace(payload.CustomerEmail); value != "" {
		return value
	}
	if payload.CustomerDetails != nil {
		return strings.TrimSpace(payload.CustomerDetails.Email)
	}
	return ""
}

// parseMinor reads an amount in minor units. Decimal strings are rounded.
func parseMinor(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return value
	}
	if value, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(value) && !math.IsInf(value, 0) {
		return int64(math.Round(value))
	}
	return 0
}

// firstKey returns the lexicographically first key so the choice is stable
// across deliveries.
func firstKey(options map[string]any) string {
	if len(options) == 0 {
		return ""
	}
	keys := make([]string, 0, len(options))
	for key := range options {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys[0]
}

func firstNonZero(values ...int64) int64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
