package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order statuses. Status is derived from sample and test state, see orders.DeriveStatus.
const (
	OrderPending    = "pending"
	OrderCollected  = "collected"
	OrderInProgress = "in_progress"
	OrderCompleted  = "completed"
	OrderCancelled  = "cancelled"
)

// Sample statuses.
const (
	SampleAwaitingCollection = "awaiting_collection"
	SampleCollected          = "collected"
	SampleReceived           = "received"
	SampleRejected           = "rejected"
)

// Test statuses.
const (
	TestPending  = "pending"
	TestResulted = "resulted"
	TestVerified = "verified"
)

// Priorities.
const (
	PriorityRoutine = "routine"
	PriorityStat    = "stat"
)

// Order groups the tests requested for a patient into samples by tube type.
type Order struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrderNumber       string              `bson:"orderNumber" json:"orderNumber"`
	PatientID         primitive.ObjectID  `bson:"patientId" json:"patientId"`
	AppointmentID     *primitive.ObjectID `bson:"appointmentId,omitempty" json:"appointmentId,omitempty"`
	OrderingPhysician string              `bson:"orderingPhysician,omitempty" json:"orderingPhysician,omitempty"`
	Priority          string              `bson:"priority" json:"priority"`
	Status            string              `bson:"status" json:"status"`
	Samples           []OrderSample       `bson:"samples" json:"samples"`
	Notes             string              `bson:"notes,omitempty" json:"notes,omitempty"`
	CancelReason      string              `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	CreatedBy         string              `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time           `bson:"updatedAt" json:"updatedAt"`
	CompletedAt       *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// TestCodes returns the codes of every test in the order, in sample order.
func (o *Order) TestCodes() []string {
	var out []string
	for _, s := range o.Samples {
		for _, t := range s.Tests {
			out = append(out, t.Code)
		}
	}
	return out
}

// Sample returns the sample for tubeType, or nil.
func (o *Order) Sample(tubeType string) *OrderSample {
	for i := range o.Samples {
		if o.Samples[i].TubeType == tubeType {
			return &o.Samples[i]
		}
	}
	return nil
}

// OrderSample is one specimen tube and the tests run on it.
type OrderSample struct {
	TubeType        string      `bson:"tubeType" json:"tubeType"`
	SpecimenType    string      `bson:"specimenType" json:"specimenType"`
	Status          string      `bson:"status" json:"status"`
	AccessionNumber string      `bson:"accessionNumber,omitempty" json:"accessionNumber,omitempty"`
	CollectedAt     *time.Time  `bson:"collectedAt,omitempty" json:"collectedAt,omitempty"`
	CollectedBy     string      `bson:"collectedBy,omitempty" json:"collectedBy,omitempty"`
	ReceivedAt      *time.Time  `bson:"receivedAt,omitempty" json:"receivedAt,omitempty"`
	RejectionReason string      `bson:"rejectionReason,omitempty" json:"rejectionReason,omitempty"`
	Tests           []OrderTest `bson:"tests" json:"tests"`
}

// OrderTest is a single requested test.
type OrderTest struct {
	Code   string      `bson:"code" json:"code"`
	Name   string      `bson:"name" json:"name"`
	Status string      `bson:"status" json:"status"`
	Result *TestResult `bson:"result,omitempty" json:"result,omitempty"`
}

// Result flags.
const (
	FlagNormal = "N"
	FlagLow    = "L"
	FlagHigh   = "H"
)

// TestResult is an entered (and possibly verified) result value.
type TestResult struct {
	Value          string              `bson:"value" json:"value"`
	NumericValue   *float64            `bson:"numericValue,omitempty" json:"numericValue,omitempty"`
	Units          string              `bson:"units,omitempty" json:"units,omitempty"`
	Flag           string              `bson:"flag,omitempty" json:"flag,omitempty"`
	ReferenceRange ReferenceRange      `bson:"referenceRange" json:"referenceRange"`
	InstrumentID   *primitive.ObjectID `bson:"instrumentId,omitempty" json:"instrumentId,omitempty"`
	Comment        string              `bson:"comment,omitempty" json:"comment,omitempty"`
	EnteredBy      string              `bson:"enteredBy" json:"enteredBy"`
	EnteredAt      time.Time           `bson:"enteredAt" json:"enteredAt"`
	VerifiedBy     string              `bson:"verifiedBy,omitempty" json:"verifiedBy,omitempty"`
	VerifiedAt     *time.Time          `bson:"verifiedAt,omitempty" json:"verifiedAt,omitempty"`
}
