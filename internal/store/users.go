package store

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tripook/tripook-backend/internal/models"
	"github.com/tripook/tripook-backend/internal/services"
)

const usersCollection = "users"

// UserStore is the MongoDB credential store.
type UserStore struct {
	col *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{col: db.Collection(usersCollection)}
}

// EnsureIndexes configures the unique and lookup indexes the account flows
// rely on. Called on startup from main after Mongo has connected.
func (s *UserStore) EnsureIndexes(ctx context.Context) error {
	idxModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_email_unique").SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName("idx_username_unique").
				SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "verification_token", Value: 1}},
			Options: options.Index().SetName("idx_verification_token").SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "reset_token", Value: 1}},
			Options: options.Index().SetName("idx_reset_token").SetSparse(true),
		},
	}

	for _, m := range idxModels {
		if _, err := s.col.Indexes().CreateOne(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *UserStore) Insert(ctx context.Context, acct *models.Account) (primitive.ObjectID, error) {
	res, err := s.col.InsertOne(ctx, acct)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, duplicateKeyError(err)
		}
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

// duplicateKeyError maps a Mongo duplicate-key write error to the colliding
// field. The service pre-checks both fields, so this only decides races that
// slip past the pre-check onto the unique indexes.
func duplicateKeyError(err error) error {
	if strings.Contains(err.Error(), "idx_username_unique") {
		return services.ErrDuplicateName
	}
	return services.ErrDuplicateEmail
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var acct models.Account
	err := s.col.FindOne(ctx, filter).Decode(&acct)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, services.ErrAccountNotFound
		}
		return nil, err
	}
	return &acct, nil
}

func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *UserStore) FindByLogin(ctx context.Context, identifier string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"$or": bson.A{
		bson.M{"email": identifier},
		bson.M{"username": identifier},
	}})
}

func (s *UserStore) FindByVerificationToken(ctx context.Context, tokenValue string, now time.Time) (*models.Account, error) {
	return s.findOne(ctx, bson.M{
		"verification_token":   tokenValue,
		"verification_expires": bson.M{"$gt": now},
	})
}

func (s *UserStore) FindByResetToken(ctx context.Context, tokenValue string, now time.Time) (*models.Account, error) {
	return s.findOne(ctx, bson.M{
		"reset_token":   tokenValue,
		"reset_expires": bson.M{"$gt": now},
	})
}

func (s *UserStore) ConsumeVerificationToken(ctx context.Context, id primitive.ObjectID, tokenValue string, now time.Time) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "verification_token": tokenValue},
		bson.M{
			"$set": bson.M{"email_verified": true, "updated_at": now},
			"$unset": bson.M{
				"verification_token":   "",
				"verification_expires": "",
			},
		})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *UserStore) ConsumeResetToken(ctx context.Context, id primitive.ObjectID, tokenValue, newHash string, now time.Time) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "reset_token": tokenValue},
		bson.M{
			"$set": bson.M{"password_hash": newHash, "updated_at": now},
			"$unset": bson.M{
				"reset_token":   "",
				"reset_expires": "",
			},
		})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *UserStore) ReserveVerificationSend(ctx context.Context, id primitive.ObjectID, prevCount int, prevSent *time.Time, newCount int, tokenValue string, expires, now time.Time) (bool, error) {
	filter := bson.M{
		"_id":                     id,
		"email_verified":          false,
		"verification_sent_count": prevCount,
	}
	if prevSent == nil {
		filter["last_verification_sent"] = bson.M{"$exists": false}
	} else {
		filter["last_verification_sent"] = *prevSent
	}

	res, err := s.col.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{
			"verification_token":      tokenValue,
			"verification_expires":    expires,
			"verification_sent_count": newCount,
			"last_verification_sent":  now,
			"updated_at":              now,
		},
	})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *UserStore) SetResetToken(ctx context.Context, id primitive.ObjectID, tokenValue string, expires, now time.Time) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"reset_token":   tokenValue,
			"reset_expires": expires,
			"updated_at":    now,
		},
	})
	return err
}

func (s *UserStore) UpdatePasswordHash(ctx context.Context, id primitive.ObjectID, hash string, now time.Time) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"password_hash": hash, "updated_at": now},
	})
	return err
}

func (s *UserStore) UpgradeToProvider(ctx context.Context, id primitive.ObjectID, profile *models.ProviderProfile, now time.Time) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "role": models.RoleUser},
		bson.M{"$set": bson.M{
			"role":       models.RoleProvider,
			"provider":   profile,
			"updated_at": now,
		}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *UserStore) ApproveProvider(ctx context.Context, id primitive.ObjectID, actorID string, now time.Time) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{
			"_id":                     id,
			"role":                    models.RoleProvider,
			"provider.approval_state": models.ApprovalPending,
			"email_verified":          true,
		},
		bson.M{"$set": bson.M{
			"provider.approval_state": models.ApprovalActive,
			"provider.approved_at":    now,
			"provider.approved_by":    actorID,
			"updated_at":              now,
		}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *UserStore) RejectProvider(ctx context.Context, id primitive.ObjectID, actorID, reason string, now time.Time) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{
			"_id":                     id,
			"role":                    models.RoleProvider,
			"provider.approval_state": models.ApprovalPending,
		},
		bson.M{"$set": bson.M{
			"provider.approval_state":   models.ApprovalRejected,
			"provider.rejected_at":      now,
			"provider.rejected_by":      actorID,
			"provider.rejection_reason": reason,
			"updated_at":                now,
		}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *UserStore) SetStatus(ctx context.Context, id primitive.ObjectID, status models.Status, now time.Time) error {
	res, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updated_at": now},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return services.ErrAccountNotFound
	}
	return nil
}

func (s *UserStore) PendingProviders(ctx context.Context) ([]models.Account, error) {
	cur, err := s.col.Find(ctx,
		bson.M{"role": models.RoleProvider, "provider.approval_state": models.ApprovalPending},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var accounts []models.Account
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}
