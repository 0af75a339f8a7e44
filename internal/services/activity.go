package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tripook/tripook-backend/internal/models"
)

// LoginEventsChannel is the Redis Pub/Sub channel carrying live login events
// for the admin dashboard feed.
const LoginEventsChannel = "logins"

// ActivityRecorder receives successful-login notifications from the lifecycle
// service.
type ActivityRecorder interface {
	RecordLogin(accountID primitive.ObjectID, ip, userAgent string)
}

// ActivityAppender is the persistence half of the recorder, implemented by the
// MongoDB activity store.
type ActivityAppender interface {
	Append(ctx context.Context, activity models.LoginActivity) error
}

// LoginEvent is the payload broadcast over Redis for the live admin feed.
type LoginEvent struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
}

// LoginRecorder appends login activity records and publishes live events.
// Recording is fire-and-forget with a bounded timeout: a slow store or broker
// must never delay or fail the login response.
type LoginRecorder struct {
	store ActivityAppender
	redis *redis.Client
}

func NewLoginRecorder(store ActivityAppender, redisClient *redis.Client) *LoginRecorder {
	return &LoginRecorder{store: store, redis: redisClient}
}

func (r *LoginRecorder) RecordLogin(accountID primitive.ObjectID, ip, userAgent string) {
	now := time.Now().UTC()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := r.store.Append(ctx, models.LoginActivity{
			UserID:         accountID,
			LoginTimestamp: now,
			IPAddress:      ip,
			UserAgent:      userAgent,
		})
		if err != nil {
			log.Printf("failed to record login activity for %s: %v", accountID.Hex(), err)
		}

		if r.redis == nil {
			return
		}
		payload, err := json.Marshal(LoginEvent{
			UserID:    accountID.Hex(),
			Timestamp: now,
			IPAddress: ip,
			UserAgent: userAgent,
		})
		if err != nil {
			return
		}
		if err := r.redis.Publish(ctx, LoginEventsChannel, payload).Err(); err != nil {
			log.Printf("failed to publish login event: %v", err)
		}
	}()
}
