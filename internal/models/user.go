package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role names carried in access tokens.
const (
	RoleAdmin        = "admin"
	RoleLabManager   = "lab_manager"
	RoleTechnician   = "technician"
	RolePhlebotomist = "phlebotomist"
	RoleReceptionist = "receptionist"
	RolePhysician    = "physician"
)

// Roles lists every assignable role.
var Roles = []string{RoleAdmin, RoleLabManager, RoleTechnician, RolePhlebotomist, RoleReceptionist, RolePhysician}

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	for _, x := range Roles {
		if x == r {
			return true
		}
	}
	return false
}

// User is a staff account.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username" validate:"required,min=3,max=64"`
	Name         string             `bson:"name" json:"name" validate:"required"`
	Email        string             `bson:"email,omitempty" json:"email,omitempty" validate:"omitempty,email"`
	Role         string             `bson:"role" json:"role" validate:"required,oneof=admin lab_manager technician phlebotomist receptionist physician"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Active       bool               `bson:"active" json:"active"`
	LastLoginAt  *time.Time         `bson:"lastLoginAt,omitempty" json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}
