package domain

import (
	"strings"
	"time"
)

const (
	// CollectionRents holds payments initiated from the tenant-facing app.
	CollectionRents = "rents"
	// CollectionRentalPayments holds bare provider status updates.
	CollectionRentalPayments = "rentalPayments"
	// CollectionNotifications holds the tenant email audit trail.
	CollectionNotifications = "paymentNotifications"

	MethodStripe = "stripe"
)

// IsPaymentCollection reports whether name is one of the two payment partitions.
func IsPaymentCollection(name string) bool {
	return name == CollectionRents || name == CollectionRentalPayments
}

// Document is a stored document's field set.
type Document map[string]any

// Record is the canonical payment record written to the document store.
type Record struct {
	PaymentIntentID string    `json:"paymentIntentId"`
	Amount          int64     `json:"amount,omitempty"`
	Status          string    `json:"status,omitempty"`
	Method          string    `json:"method,omitempty"`
	StripeEventType string    `json:"stripeEventType,omitempty"`
	CreatedOn       time.Time `json:"createdOn,omitempty"`
	UpdatedOn       time.Time `json:"updatedOn,omitempty"`

	TenantID          string `json:"tenantId,omitempty"`
	TenantEmail       string `json:"tenantEmail,omitempty"`
	PropertyID        string `json:"propertyId,omitempty"`
	PropertyOwnerID   string `json:"propertyOwnerId,omitempty"`
	RentMonth         string `json:"rentMonth,omitempty"`
	RentAmount        int64  `json:"rentAmount,omitempty"`
	AdditionalCharges int64  `json:"additionalCharges,omitempty"`
	InitialLateFee    int64  `json:"initialLateFee,omitempty"`
	DailyLateFee      int64  `json:"dailyLateFee,omitempty"`
	PaymentMethodType string `json:"paymentMethodType,omitempty"`
	CreatedBy         string `json:"createdBy,omitempty"`
	UpdatedBy         string `json:"updatedBy,omitempty"`

	PaymentMethod        string         `json:"paymentMethod,omitempty"`
	PaymentMethodDetails map[string]any `json:"paymentMethodDetails,omitempty"`
	ReceiptURL           string         `json:"receiptUrl,omitempty"`
}

// HasMetadata reports whether the record carries tenant-originated context.
// It decides both the storage partition and whether the tenant is notified.
func (r Record) HasMetadata() bool {
	return strings.TrimSpace(r.CreatedBy) != "" ||
		strings.TrimSpace(r.TenantID) != "" ||
		strings.TrimSpace(r.TenantEmail) != "" ||
		strings.TrimSpace(r.PropertyID) != "" ||
		strings.TrimSpace(r.PropertyOwnerID) != "" ||
		strings.TrimSpace(r.RentMonth) != "" ||
		r.RentAmount != 0 ||
		r.AdditionalCharges != 0 ||
		r.InitialLateFee != 0 ||
		r.DailyLateFee != 0
}

func (r Record) Collection() string {
	if r.HasMetadata() {
		return CollectionRents
	}
	return CollectionRentalPayments
}

// Fields returns the non-empty fields to merge into the stored document.
// createdOn is owned by the store and only written on create.
func (r Record) Fields() map[string]any {
	fields := map[string]any{
		"paymentIntentId": r.PaymentIntentID,
	}
	putString(fields, "status", r.Status)
	putString(fields, "method", r.Method)
	putString(fields, "stripeEventType", r.StripeEventType)
	putInt(fields, "amount", r.Amount)

	putString(fields, "tenantId", r.TenantID)
	putString(fields, "tenantEmail", r.TenantEmail)
	putString(fields, "propertyId", r.PropertyID)
	putString(fields, "propertyOwnerId", r.PropertyOwnerID)
	putString(fields, "rentMonth", r.RentMonth)
	putInt(fields, "rentAmount", r.RentAmount)
	putInt(fields, "additionalCharges", r.AdditionalCharges)
	putInt(fields, "initialLateFee", r.InitialLateFee)
	putInt(fields, "dailyLateFee", r.DailyLateFee)
	putString(fields, "paymentMethodType", r.PaymentMethodType)
	putString(fields, "createdBy", r.CreatedBy)
	putString(fields, "updatedBy", r.UpdatedBy)

	putString(fields, "paymentMethod", r.PaymentMethod)
	putString(fields, "receiptUrl", r.ReceiptURL)
	if len(r.PaymentMethodDetails) > 0 {
		fields["paymentMethodDetails"] = r.PaymentMethodDetails
	}

	if !r.UpdatedOn.IsZero() {
		fields["updatedOn"] = r.UpdatedOn.UTC()
	}
	return fields
}

func putString(fields map[string]any, key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	fields[key] = value
}

func putInt(fields map[string]any, key string, value int64) {
	if value == 0 {
		return
	}
	fields[key] = value
}

// RecordResult reports the outcome of one recorder call.
type RecordResult struct {
	Collection string
	DocumentID string
	Created    bool
	Notified   bool
	Err        error
}

func (r RecordResult) OK() bool { return r.Err == nil }
