package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReferenceRange is the normal range for a test. Low/High are nil for qualitative tests.
type ReferenceRange struct {
	Low  *float64 `bson:"low,omitempty" json:"low,omitempty"`
	High *float64 `bson:"high,omitempty" json:"high,omitempty"`
	Text string   `bson:"text,omitempty" json:"text,omitempty"`
}

// TestCatalogItem describes an orderable test and the specimen tube it needs.
type TestCatalogItem struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code            string             `bson:"code" json:"code" validate:"required,max=32"`
	Name            string             `bson:"name" json:"name" validate:"required"`
	Department      string             `bson:"department,omitempty" json:"department,omitempty"`
	SpecimenType    string             `bson:"specimenType" json:"specimenType" validate:"required"`
	TubeType        string             `bson:"tubeType" json:"tubeType" validate:"required"`
	Units           string             `bson:"units,omitempty" json:"units,omitempty"`
	ReferenceRange  ReferenceRange     `bson:"referenceRange" json:"referenceRange"`
	TurnaroundHours int                `bson:"turnaroundHours" json:"turnaroundHours" validate:"gte=0"`
	Price           float64            `bson:"price" json:"price" validate:"gte=0"`
	Active          bool               `bson:"active" json:"active"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Instrument statuses.
const (
	InstrumentOnline      = "online"
	InstrumentOffline     = "offline"
	InstrumentMaintenance = "maintenance"
)

// Instrument is an analyzer that produces results.
type Instrument struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name" validate:"required"`
	Model            string             `bson:"model,omitempty" json:"model,omitempty"`
	SerialNumber     string             `bson:"serialNumber,omitempty" json:"serialNumber,omitempty"`
	Department       string             `bson:"department,omitempty" json:"department,omitempty"`
	Status           string             `bson:"status" json:"status" validate:"required,oneof=online offline maintenance"`
	SupportedTests   []string           `bson:"supportedTests,omitempty" json:"supportedTests,omitempty"`
	LastCalibratedAt *time.Time         `bson:"lastCalibratedAt,omitempty" json:"lastCalibratedAt,omitempty"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}
