package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tripook/tripook-backend/internal/models"
	"github.com/tripook/tripook-backend/internal/services"
	"github.com/tripook/tripook-backend/internal/token"
)

type contextKey string

const accountContextKey contextKey = "account"

// AccountFromContext returns the authenticated account set by RequireAuth.
func AccountFromContext(ctx context.Context) (*models.Account, bool) {
	acct, ok := ctx.Value(accountContextKey).(*models.Account)
	return acct, ok
}

// Authenticator validates bearer tokens and loads the calling account.
type Authenticator struct {
	issuer *token.Issuer
	users  services.UserStore
}

func NewAuthenticator(issuer *token.Issuer, users services.UserStore) *Authenticator {
	return &Authenticator{issuer: issuer, users: users}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success":false,"message":"invalid or expired session token"}`))
}

// RequireAuth validates the Authorization bearer token, loads the account, and
// rejects blocked or deleted accounts. The account is placed on the request
// context for downstream handlers.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(w)
			return
		}

		accountID, err := a.issuer.ValidateSession(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			unauthorized(w)
			return
		}

		objID, err := primitive.ObjectIDFromHex(accountID)
		if err != nil {
			unauthorized(w)
			return
		}

		acct, err := a.users.FindByID(r.Context(), objID)
		if err != nil {
			unauthorized(w)
			return
		}
		if acct.Status != models.StatusActive {
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(
			context.WithValue(r.Context(), accountContextKey, acct)))
	})
}

// RequireAdmin gates a subtree to admin accounts. Must run after RequireAuth.
func (a *Authenticator) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, ok := AccountFromContext(r.Context())
		if !ok || acct.Role != models.RoleAdmin {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"success":false,"message":"admin access required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
