package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Patient is a registered patient; MRN is the human-readable medical record number.
type Patient struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MRN         string             `bson:"mrn" json:"mrn"`
	FirstName   string             `bson:"firstName" json:"firstName" validate:"required"`
	LastName    string             `bson:"lastName" json:"lastName" validate:"required"`
	DateOfBirth time.Time          `bson:"dateOfBirth" json:"dateOfBirth" validate:"required"`
	Sex         string             `bson:"sex" json:"sex" validate:"required,oneof=male female other unknown"`
	Phone       string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Email       string             `bson:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
	Address     string             `bson:"address,omitempty" json:"address,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// FullName returns "First Last".
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}
