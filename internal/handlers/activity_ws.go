package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tripook/tripook-backend/internal/models"
	"github.com/tripook/tripook-backend/internal/services"
	"github.com/tripook/tripook-backend/internal/token"
)

var loginFeedUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// LoginFeedHandler streams live login events to admin dashboards over
// WebSocket, fed by the Redis Pub/Sub channel the login recorder publishes to.
type LoginFeedHandler struct {
	issuer *token.Issuer
	users  services.UserStore
	redis  *redis.Client
}

func NewLoginFeedHandler(issuer *token.Issuer, users services.UserStore, redisClient *redis.Client) *LoginFeedHandler {
	return &LoginFeedHandler{issuer: issuer, users: users, redis: redisClient}
}

// Stream upgrades the connection and forwards login events until the client
// disconnects. Authentication is via Authorization header or, for browser
// WebSocket clients, a `token` query parameter. Admin role is required.
func (h *LoginFeedHandler) Stream(w http.ResponseWriter, r *http.Request) {
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if bearer == "" || bearer == r.Header.Get("Authorization") {
		bearer = r.URL.Query().Get("token")
	}
	if bearer == "" {
		http.Error(w, "missing session token", http.StatusUnauthorized)
		return
	}

	accountID, err := h.issuer.ValidateSession(bearer)
	if err != nil {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}
	objID, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	acct, err := h.users.FindByID(r.Context(), objID)
	if err != nil || acct.Role != models.RoleAdmin || acct.Status != models.StatusActive {
		http.Error(w, "admin access required", http.StatusForbidden)
		return
	}

	conn, err := loginFeedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log.Printf("admin login feed connected: conn=%s admin=%s", connID, acct.ID.Hex())

	sub := h.redis.Subscribe(r.Context(), services.LoginEventsChannel)
	defer sub.Close()

	// Reader loop keeps the connection's pong handling alive and notices
	// client disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(1024)
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	events := sub.Channel()
	for {
		select {
		case <-done:
			log.Printf("admin login feed disconnected: conn=%s", connID)
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				return
			}
		}
	}
}
