package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuditLog records a mutating action taken by a user.
type AuditLog struct {
	ID         primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	UserID     string                 `bson:"userId" json:"userId"`
	Role       string                 `bson:"role,omitempty" json:"role,omitempty"`
	Action     string                 `bson:"action" json:"action"`
	EntityType string                 `bson:"entityType" json:"entityType"`
	EntityID   string                 `bson:"entityId" json:"entityId"`
	Changes    map[string]interface{} `bson:"changes,omitempty" json:"changes,omitempty"`
	Timestamp  time.Time              `bson:"timestamp" json:"timestamp"`
}
