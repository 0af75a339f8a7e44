package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tripook/tripook-backend/internal/models"
	"github.com/tripook/tripook-backend/internal/token"
	"github.com/tripook/tripook-backend/pkg/utils"
)

const minPasswordLength = 6

// mailTimeout bounds every outbound email dispatch so a slow transport cannot
// hold up a request beyond it.
const mailTimeout = 10 * time.Second

// AccountService is the account lifecycle manager. It orchestrates
// registration, login, email verification, password reset, and the
// user→provider upgrade/approval workflow over the credential store, the
// token issuer, the resend limiter, and the login activity recorder.
type AccountService struct {
	users       UserStore
	issuer      *token.Issuer
	mailer      Mailer
	recorder    ActivityRecorder
	frontendURL string
	now         func() time.Time
}

func NewAccountService(users UserStore, issuer *token.Issuer, mailer Mailer, recorder ActivityRecorder, frontendURL string) *AccountService {
	return &AccountService{
		users:       users,
		issuer:      issuer,
		mailer:      mailer,
		recorder:    recorder,
		frontendURL: frontendURL,
		now:         time.Now,
	}
}

// BusinessProfileInput carries the provider application fields.
type BusinessProfileInput struct {
	CompanyName   string
	BusinessType  string
	BusinessPhone string
	BusinessEmail string
	Description   string
	LicenseURL    string
}

// RegisterInput carries validated registration fields. Business is set when
// the caller registers with provider intent; the account still goes through
// the regular upgrade path so the pending-approval invariants hold.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Username string
	Phone    string
	Business *BusinessProfileInput
}

// Register creates a new account, issues a verification token, dispatches the
// verification email fire-and-forget, and returns a session token. A failed
// email send never fails registration; the issued token stays valid.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*models.Account, string, error) {
	if len(in.Password) < minPasswordLength {
		return nil, "", ErrWeakPassword
	}

	phone := ""
	if in.Phone != "" {
		if err := utils.ValidatePhone(in.Phone); err != nil {
			return nil, "", err
		}
		phone = utils.NormalizePhone(in.Phone)
	}
	// Fail before insert, not on the post-insert upgrade path.
	if in.Business != nil && in.Business.BusinessPhone != "" {
		if err := utils.ValidatePhone(in.Business.BusinessPhone); err != nil {
			return nil, "", err
		}
	}

	email := utils.NormalizeEmail(in.Email)
	now := s.now().UTC()

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, "", ErrDuplicateEmail
	} else if err != ErrAccountNotFound {
		return nil, "", err
	}

	username := ""
	if in.Username != "" {
		username = utils.NormalizeUsername(in.Username)
		if _, err := s.users.FindByLogin(ctx, username); err == nil {
			return nil, "", ErrDuplicateName
		} else if err != ErrAccountNotFound {
			return nil, "", err
		}
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, "", err
	}

	verifyToken, verifyExpires, err := s.issuer.MintOneTime(token.VerificationTokenTTL)
	if err != nil {
		return nil, "", err
	}

	acct := &models.Account{
		CreatedAt:             now,
		UpdatedAt:             now,
		Email:                 email,
		Username:              username,
		Name:                  in.Name,
		Phone:                 phone,
		PasswordHash:          hash,
		Role:                  models.RoleUser,
		Status:                models.StatusActive,
		EmailVerified:         false,
		VerificationToken:     verifyToken,
		VerificationExpires:   &verifyExpires,
		VerificationSentCount: 1,
		LastVerificationSent:  &now,
	}

	id, err := s.users.Insert(ctx, acct)
	if err != nil {
		return nil, "", err
	}
	acct.ID = id

	if in.Business != nil {
		if upgraded, err := s.UpgradeToProvider(ctx, id, *in.Business); err == nil {
			acct = upgraded
		} else {
			log.Printf("provider application for %s not recorded at registration: %v", email, err)
		}
	}

	s.dispatchVerificationEmail(acct.Email, acct.Name, verifyToken)

	sessionToken, err := s.issuer.MintSession(id.Hex(), false)
	if err != nil {
		return nil, "", err
	}

	return acct, sessionToken, nil
}

// Login authenticates by email or username. Missing accounts and wrong
// passwords collapse into the same ErrInvalidCredentials. On success a
// session token is minted and a login activity record is appended.
func (s *AccountService) Login(ctx context.Context, identifier, password string, remember bool, ip, userAgent string) (*models.Account, string, error) {
	acct, err := s.users.FindByLogin(ctx, utils.NormalizeEmail(identifier))
	if err != nil {
		if err == ErrAccountNotFound {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	valid, needsRehash, err := utils.VerifyPassword(password, acct.PasswordHash)
	if err != nil || !valid {
		return nil, "", ErrInvalidCredentials
	}

	if acct.Status != models.StatusActive {
		return nil, "", ErrAccountDisabled
	}

	// Legacy bcrypt hashes migrate to the current scheme on first successful
	// login. Best effort; login proceeds either way.
	if needsRehash {
		if newHash, err := utils.HashPassword(password); err == nil {
			if err := s.users.UpdatePasswordHash(ctx, acct.ID, newHash, s.now().UTC()); err != nil {
				log.Printf("failed to migrate password hash for %s: %v", acct.ID.Hex(), err)
			}
		}
	}

	sessionToken, err := s.issuer.MintSession(acct.ID.Hex(), remember)
	if err != nil {
		return nil, "", err
	}

	if s.recorder != nil {
		s.recorder.RecordLogin(acct.ID, ip, userAgent)
	}

	return acct, sessionToken, nil
}

// RequestVerification re-issues the verification email, subject to the resend
// limiter. The counter advance and the new token are persisted with a single
// conditional update keyed on the counters read here, so two concurrent
// requests cannot both pass the window check. Unlike registration, a dispatch
// failure here surfaces to the caller.
func (s *AccountService) RequestVerification(ctx context.Context, accountID primitive.ObjectID) (int, error) {
	acct, err := s.users.FindByID(ctx, accountID)
	if err != nil {
		return 0, err
	}

	now := s.now().UTC()
	count, err := evaluateResend(acct, now)
	if err != nil {
		return 0, err
	}

	verifyToken, verifyExpires, err := s.issuer.MintOneTime(token.VerificationTokenTTL)
	if err != nil {
		return 0, err
	}

	reserved, err := s.users.ReserveVerificationSend(ctx, accountID,
		acct.VerificationSentCount, acct.LastVerificationSent,
		count+1, verifyToken, verifyExpires, now)
	if err != nil {
		return 0, err
	}
	if !reserved {
		// A concurrent resend advanced the counters first.
		return 0, newCooldownError(verificationResendCooldown)
	}

	mailCtx, cancel := context.WithTimeout(ctx, mailTimeout)
	defer cancel()
	if err := s.mailer.SendVerificationEmail(mailCtx, acct.Email, acct.Name, s.verificationLink(verifyToken)); err != nil {
		log.Printf("failed to send verification email to %s: %v", acct.Email, err)
		return 0, ErrMailDispatch
	}

	return count + 1, nil
}

// VerifyEmail consumes a verification token. The token is deleted on first
// use, so replaying the same value fails with ErrExpiredOrInvalid; expired,
// consumed, and unknown tokens are indistinguishable to the caller.
func (s *AccountService) VerifyEmail(ctx context.Context, tokenValue string) (*models.Account, error) {
	now := s.now().UTC()

	acct, err := s.users.FindByVerificationToken(ctx, tokenValue, now)
	if err != nil {
		if err == ErrAccountNotFound {
			return nil, ErrExpiredOrInvalid
		}
		return nil, err
	}

	if s.issuer.CheckOneTime(acct.VerificationToken, acct.VerificationExpires, tokenValue) != token.OneTimeOK {
		return nil, ErrExpiredOrInvalid
	}

	consumed, err := s.users.ConsumeVerificationToken(ctx, acct.ID, tokenValue, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		return nil, ErrExpiredOrInvalid
	}

	acct.EmailVerified = true
	acct.VerificationToken = ""
	acct.VerificationExpires = nil
	return acct, nil
}

// ForgotPassword always succeeds from the caller's perspective: whether the
// email exists is never revealed. When the account exists a reset token is
// minted and the email dispatched fire-and-forget.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) error {
	acct, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		if err == ErrAccountNotFound {
			return nil
		}
		return err
	}

	resetToken, resetExpires, err := s.issuer.MintOneTime(token.ResetTokenTTL)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	if err := s.users.SetResetToken(ctx, acct.ID, resetToken, resetExpires, now); err != nil {
		return err
	}

	go func(toEmail, name, link string) {
		mailCtx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := s.mailer.SendPasswordResetEmail(mailCtx, toEmail, name, link); err != nil {
			log.Printf("failed to send password reset email to %s: %v", toEmail, err)
		}
	}(acct.Email, acct.Name, s.resetLink(resetToken))

	return nil
}

// ResetPassword consumes a reset token and installs the new password hash in
// one conditional update. Works independently of email verification.
func (s *AccountService) ResetPassword(ctx context.Context, tokenValue, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}

	now := s.now().UTC()
	acct, err := s.users.FindByResetToken(ctx, tokenValue, now)
	if err != nil {
		if err == ErrAccountNotFound {
			return ErrExpiredOrInvalid
		}
		return err
	}

	if s.issuer.CheckOneTime(acct.ResetToken, acct.ResetExpires, tokenValue) != token.OneTimeOK {
		return ErrExpiredOrInvalid
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}

	consumed, err := s.users.ConsumeResetToken(ctx, acct.ID, tokenValue, hash, now)
	if err != nil {
		return err
	}
	if !consumed {
		return ErrExpiredOrInvalid
	}
	return nil
}

// UpgradeToProvider files a provider application: role flips user→provider
// with a pending profile. Approval metadata stays unset until an admin acts.
func (s *AccountService) UpgradeToProvider(ctx context.Context, accountID primitive.ObjectID, in BusinessProfileInput) (*models.Account, error) {
	acct, err := s.users.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct.Role != models.RoleUser {
		return nil, ErrAlreadyProvider
	}

	businessPhone := ""
	if in.BusinessPhone != "" {
		if err := utils.ValidatePhone(in.BusinessPhone); err != nil {
			return nil, err
		}
		businessPhone = utils.NormalizePhone(in.BusinessPhone)
	}

	profile := &models.ProviderProfile{
		CompanyName:        in.CompanyName,
		BusinessType:       in.BusinessType,
		BusinessPhone:      businessPhone,
		BusinessEmail:      utils.NormalizeEmail(in.BusinessEmail),
		Description:        in.Description,
		BusinessLicenseURL: in.LicenseURL,
		ApprovalState:      models.ApprovalPending,
	}

	upgraded, err := s.users.UpgradeToProvider(ctx, accountID, profile, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !upgraded {
		return nil, ErrAlreadyProvider
	}

	acct.Role = models.RoleProvider
	acct.Provider = profile
	return acct, nil
}

// AdminDecide resolves a pending provider application. Approval requires a
// verified email and stamps the approver and timestamp; rejection stamps the
// actor, timestamp, and reason. The notification email is best effort: a
// dispatch failure is logged and never rolls back the state change.
func (s *AccountService) AdminDecide(ctx context.Context, actorID primitive.ObjectID, providerID primitive.ObjectID, approve bool, reason string) (*models.Account, error) {
	acct, err := s.users.FindByID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if acct.Role != models.RoleProvider || acct.Provider == nil ||
		acct.Provider.ApprovalState != models.ApprovalPending {
		return nil, ErrNotPending
	}

	now := s.now().UTC()
	actor := actorID.Hex()

	var decided bool
	if approve {
		if !acct.EmailVerified {
			return nil, ErrProviderNotReady
		}
		decided, err = s.users.ApproveProvider(ctx, providerID, actor, now)
	} else {
		decided, err = s.users.RejectProvider(ctx, providerID, actor, reason, now)
	}
	if err != nil {
		return nil, err
	}
	if !decided {
		return nil, ErrNotPending
	}

	if approve {
		acct.Provider.ApprovalState = models.ApprovalActive
		acct.Provider.ApprovedAt = &now
		acct.Provider.ApprovedBy = actor
	} else {
		acct.Provider.ApprovalState = models.ApprovalRejected
		acct.Provider.RejectedAt = &now
		acct.Provider.RejectedBy = actor
		acct.Provider.RejectionReason = reason
	}

	go func(a models.Account, approved bool, reason string) {
		mailCtx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		var err error
		if approved {
			err = s.mailer.SendProviderApprovalEmail(mailCtx, a.Email, a.Name, a.Provider.CompanyName)
		} else {
			err = s.mailer.SendProviderRejectionEmail(mailCtx, a.Email, a.Name, a.Provider.CompanyName, reason)
		}
		if err != nil {
			log.Printf("failed to send provider decision email to %s: %v", a.Email, err)
		}
	}(*acct, approve, reason)

	return acct, nil
}

// SetAccountStatus blocks, unblocks, or soft-deletes an account. Admins
// cannot act on themselves. Accounts are never hard-deleted.
func (s *AccountService) SetAccountStatus(ctx context.Context, actorID, targetID primitive.ObjectID, status models.Status) error {
	if actorID == targetID {
		return ErrSelfAction
	}
	return s.users.SetStatus(ctx, targetID, status, s.now().UTC())
}

// Profile loads an account by id.
func (s *AccountService) Profile(ctx context.Context, accountID primitive.ObjectID) (*models.Account, error) {
	return s.users.FindByID(ctx, accountID)
}

// EmailAvailable reports whether the normalized email is unregistered.
func (s *AccountService) EmailAvailable(ctx context.Context, email string) (bool, error) {
	_, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err == ErrAccountNotFound {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// PendingProviders lists applications awaiting an admin decision.
func (s *AccountService) PendingProviders(ctx context.Context) ([]models.Account, error) {
	return s.users.PendingProviders(ctx)
}

func (s *AccountService) verificationLink(tokenValue string) string {
	return fmt.Sprintf("%s/verify-email?token=%s", s.frontendURL, tokenValue)
}

func (s *AccountService) resetLink(tokenValue string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, tokenValue)
}

func (s *AccountService) dispatchVerificationEmail(email, name, tokenValue string) {
	go func() {
		mailCtx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := s.mailer.SendVerificationEmail(mailCtx, email, name, s.verificationLink(tokenValue)); err != nil {
			log.Printf("failed to send verification email to %s: %v", email, err)
		}
	}()
}
