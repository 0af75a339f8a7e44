package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoginActivity is an append-only record of a successful login.
// Records are never updated or deleted.
type LoginActivity struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	LoginTimestamp time.Time          `bson:"login_timestamp" json:"login_timestamp"`
	IPAddress      string             `bson:"ip_address,omitempty" json:"ip_address,omitempty"`
	UserAgent      string             `bson:"user_agent,omitempty" json:"user_agent,omitempty"`
}
