package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tripook/tripook-backend/internal/models"
)

// UserStore is the credential store consumed by the lifecycle service. The
// MongoDB implementation lives in internal/store; tests use an in-memory fake.
//
// All token/approval transitions are conditional updates keyed by account id
// (and, for token consumption, by the token value itself) so that two
// concurrent requests cannot both consume the same one-time token or both pass
// the resend window check against stale counters.
type UserStore interface {
	Insert(ctx context.Context, acct *models.Account) (primitive.ObjectID, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	// FindByLogin matches the identifier against email or username.
	FindByLogin(ctx context.Context, identifier string) (*models.Account, error)
	// FindByVerificationToken and FindByResetToken only return accounts whose
	// stored expiry is after now.
	FindByVerificationToken(ctx context.Context, tokenValue string, now time.Time) (*models.Account, error)
	FindByResetToken(ctx context.Context, tokenValue string, now time.Time) (*models.Account, error)

	// ConsumeVerificationToken clears the token fields and sets email_verified,
	// guarded by "token value still matches". Returns false when another
	// request consumed it first.
	ConsumeVerificationToken(ctx context.Context, id primitive.ObjectID, tokenValue string, now time.Time) (bool, error)
	// ConsumeResetToken clears the reset token and installs the new password
	// hash in a single conditional update.
	ConsumeResetToken(ctx context.Context, id primitive.ObjectID, tokenValue, newHash string, now time.Time) (bool, error)

	// ReserveVerificationSend installs a fresh verification token and advances
	// the resend counters, guarded by the previously observed counter pair.
	// Returns false when a concurrent resend won the race.
	ReserveVerificationSend(ctx context.Context, id primitive.ObjectID, prevCount int, prevSent *time.Time, newCount int, tokenValue string, expires, now time.Time) (bool, error)

	SetResetToken(ctx context.Context, id primitive.ObjectID, tokenValue string, expires, now time.Time) error
	UpdatePasswordHash(ctx context.Context, id primitive.ObjectID, hash string, now time.Time) error

	// UpgradeToProvider flips role user→provider with a pending profile,
	// guarded by role == "user". Returns false when the account is already a
	// provider.
	UpgradeToProvider(ctx context.Context, id primitive.ObjectID, profile *models.ProviderProfile, now time.Time) (bool, error)
	// ApproveProvider requires approval_state == "pending" AND a verified
	// email; RejectProvider requires only the pending state.
	ApproveProvider(ctx context.Context, id primitive.ObjectID, actorID string, now time.Time) (bool, error)
	RejectProvider(ctx context.Context, id primitive.ObjectID, actorID, reason string, now time.Time) (bool, error)

	SetStatus(ctx context.Context, id primitive.ObjectID, status models.Status, now time.Time) error
	PendingProviders(ctx context.Context) ([]models.Account, error)
}
