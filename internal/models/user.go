package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Role string

const (
	RoleUser     Role = "user"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

type Status string

const (
	StatusActive  Status = "active"
	StatusBlocked Status = "blocked"
	StatusDeleted Status = "deleted"
)

type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalActive   ApprovalState = "active"
	ApprovalRejected ApprovalState = "rejected"
)

// ProviderProfile is present only on accounts with Role == RoleProvider.
// Exactly one of ApprovedAt/RejectedAt is set once the profile leaves "pending".
type ProviderProfile struct {
	CompanyName        string        `bson:"company_name" json:"company_name"`
	BusinessType       string        `bson:"business_type" json:"business_type"`
	BusinessPhone      string        `bson:"business_phone" json:"business_phone"`
	BusinessEmail      string        `bson:"business_email" json:"business_email"`
	Description        string        `bson:"description,omitempty" json:"description,omitempty"`
	BusinessLicenseURL string        `bson:"business_license_url,omitempty" json:"business_license_url,omitempty"`
	ApprovalState      ApprovalState `bson:"approval_state" json:"approval_state"`
	ApprovedAt         *time.Time    `bson:"approved_at,omitempty" json:"approved_at,omitempty"`
	ApprovedBy         string        `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
	RejectedAt         *time.Time    `bson:"rejected_at,omitempty" json:"rejected_at,omitempty"`
	RejectedBy         string        `bson:"rejected_by,omitempty" json:"rejected_by,omitempty"`
	RejectionReason    string        `bson:"rejection_reason,omitempty" json:"rejection_reason,omitempty"`
}

type Account struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	Email    string `bson:"email" json:"email"`                           // stored lowercased and trimmed
	Username string `bson:"username,omitempty" json:"username,omitempty"` // optional, unique when set
	Name     string `bson:"name" json:"name"`
	Phone    string `bson:"phone,omitempty" json:"phone,omitempty"`
	Picture  string `bson:"picture,omitempty" json:"picture,omitempty"`

	PasswordHash string `bson:"password_hash" json:"-"` // never returned to a client

	Role   Role   `bson:"role" json:"role"`
	Status Status `bson:"status" json:"status"`

	EmailVerified         bool       `bson:"email_verified" json:"email_verified"`
	VerificationToken     string     `bson:"verification_token,omitempty" json:"-"`
	VerificationExpires   *time.Time `bson:"verification_expires,omitempty" json:"-"`
	VerificationSentCount int        `bson:"verification_sent_count" json:"-"`
	LastVerificationSent  *time.Time `bson:"last_verification_sent,omitempty" json:"-"`

	ResetToken   string     `bson:"reset_token,omitempty" json:"-"`
	ResetExpires *time.Time `bson:"reset_expires,omitempty" json:"-"`

	Provider *ProviderProfile `bson:"provider,omitempty" json:"provider,omitempty"`
}

// IsActiveProvider reports whether the account is an admin-approved provider.
func (a *Account) IsActiveProvider() bool {
	return a.Role == RoleProvider && a.Provider != nil && a.Provider.ApprovalState == ApprovalActive
}
