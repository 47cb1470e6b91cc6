package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Appointment statuses.
const (
	AppointmentScheduled = "scheduled"
	AppointmentCheckedIn = "checked_in"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no_show"
)

// Appointment is a collection visit booked for a patient.
type Appointment struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	PatientID       primitive.ObjectID  `bson:"patientId" json:"patientId"`
	OrderID         *primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"`
	ScheduledAt     time.Time           `bson:"scheduledAt" json:"scheduledAt"`
	DurationMinutes int                 `bson:"durationMinutes" json:"durationMinutes"`
	Status          string              `bson:"status" json:"status"`
	Location        string              `bson:"location,omitempty" json:"location,omitempty"`
	Notes           string              `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedBy       string              `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// EndsAt returns ScheduledAt + DurationMinutes.
func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Blocking reports whether the appointment occupies its time window.
func (a *Appointment) Blocking() bool {
	return a.Status != AppointmentCancelled && a.Status != AppointmentNoShow
}

// AppointmentView is the denormalized appointment returned to the scheduling screens.
type AppointmentView struct {
	Appointment `bson:",inline"`
	Patient     *PatientSummary `bson:"patient,omitempty" json:"patient,omitempty"`
	Order       *OrderSummary   `bson:"order,omitempty" json:"order,omitempty"`
	Tests       []ViewTest      `bson:"tests" json:"tests"`
}

// PatientSummary is the patient subset embedded in views.
type PatientSummary struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	MRN         string             `bson:"mrn" json:"mrn"`
	FirstName   string             `bson:"firstName" json:"firstName"`
	LastName    string             `bson:"lastName" json:"lastName"`
	DateOfBirth time.Time          `bson:"dateOfBirth" json:"dateOfBirth"`
	Sex         string             `bson:"sex" json:"sex"`
	Phone       string             `bson:"phone,omitempty" json:"phone,omitempty"`
}

// OrderSummary is the order subset embedded in views.
type OrderSummary struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	OrderNumber string             `bson:"orderNumber" json:"orderNumber"`
	Priority    string             `bson:"priority" json:"priority"`
	Status      string             `bson:"status" json:"status"`
	Samples     []OrderSample      `bson:"samples" json:"samples"`
}

// ViewTest is an ordered test joined with its catalog entry.
type ViewTest struct {
	Code         string  `bson:"code" json:"code"`
	Name         string  `bson:"name" json:"name"`
	TubeType     string  `bson:"tubeType" json:"tubeType"`
	SpecimenType string  `bson:"specimenType" json:"specimenType"`
	Department   string  `bson:"department,omitempty" json:"department,omitempty"`
	Price        float64 `bson:"price" json:"price"`
}
