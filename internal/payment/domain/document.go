package domain

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentRecord is the relational form of a stored document.
type DocumentRecord struct {
	Collection string            `gorm:"primaryKey;size:64"`
	DocumentID string            `gorm:"primaryKey;size:255"`
	Data       datatypes.JSONMap `gorm:"not null"`
	CreatedOn  time.Time         `gorm:"not null"`
	UpdatedOn  time.Time         `gorm:"not null;index"`
}

func (DocumentRecord) TableName() string { return "payment_documents" }

// Document returns the stored fields with the timestamps the store owns.
func (r DocumentRecord) Document() Document {
	doc := make(Document, len(r.Data)+2)
	for key, value := range r.Data {
		doc[key] = value
	}
	doc["createdOn"] = r.CreatedOn.UTC()
	doc["updatedOn"] = r.UpdatedOn.UTC()
	return doc
}
