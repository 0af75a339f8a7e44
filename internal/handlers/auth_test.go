package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tripook/tripook-backend/internal/handlers"
	"github.com/tripook/tripook-backend/internal/middleware"
	"github.com/tripook/tripook-backend/internal/models"
	"github.com/tripook/tripook-backend/internal/routes"
	"github.com/tripook/tripook-backend/internal/services"
	"github.com/tripook/tripook-backend/internal/token"
)

// memoryStore is a minimal in-memory UserStore backing the HTTP tests.
type memoryStore struct {
	mu       sync.Mutex
	accounts map[primitive.ObjectID]*models.Account
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: make(map[primitive.ObjectID]*models.Account)}
}

func (m *memoryStore) Insert(_ context.Context, acct *models.Account) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == acct.Email {
			return primitive.NilObjectID, services.ErrDuplicateEmail
		}
	}
	id := primitive.NewObjectID()
	cp := *acct
	cp.ID = id
	m.accounts[id] = &cp
	return id, nil
}

func (m *memoryStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acct, ok := m.accounts[id]; ok {
		cp := *acct
		return &cp, nil
	}
	return nil, services.ErrAccountNotFound
}

func (m *memoryStore) FindByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acct := range m.accounts {
		if acct.Email == email {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, services.ErrAccountNotFound
}

func (m *memoryStore) FindByLogin(ctx context.Context, identifier string) (*models.Account, error) {
	return m.FindByEmail(ctx, identifier)
}

func (m *memoryStore) FindByVerificationToken(_ context.Context, tokenValue string, now time.Time) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acct := range m.accounts {
		if acct.VerificationToken == tokenValue && tokenValue != "" &&
			acct.VerificationExpires != nil && acct.VerificationExpires.After(now) {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, services.ErrAccountNotFound
}

func (m *memoryStore) FindByResetToken(_ context.Context, tokenValue string, now time.Time) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acct := range m.accounts {
		if acct.ResetToken == tokenValue && tokenValue != "" &&
			acct.ResetExpires != nil && acct.ResetExpires.After(now) {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, services.ErrAccountNotFound
}

func (m *memoryStore) ConsumeVerificationToken(_ context.Context, id primitive.ObjectID, tokenValue string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	if !ok || acct.VerificationToken != tokenValue {
		return false, nil
	}
	acct.EmailVerified = true
	acct.VerificationToken = ""
	acct.VerificationExpires = nil
	return true, nil
}

func (m *memoryStore) ConsumeResetToken(_ context.Context, id primitive.ObjectID, tokenValue, newHash string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	if !ok || acct.ResetToken != tokenValue {
		return false, nil
	}
	acct.PasswordHash = newHash
	acct.ResetToken = ""
	acct.ResetExpires = nil
	return true, nil
}

func (m *memoryStore) ReserveVerificationSend(_ context.Context, id primitive.ObjectID, prevCount int, prevSent *time.Time, newCount int, tokenValue string, expires, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	if !ok || acct.EmailVerified || acct.VerificationSentCount != prevCount {
		return false, nil
	}
	acct.VerificationToken = tokenValue
	acct.VerificationExpires = &expires
	acct.VerificationSentCount = newCount
	acct.LastVerificationSent = &now
	return true, nil
}

func (m *memoryStore) SetResetToken(_ context.Context, id primitive.ObjectID, tokenValue string, expires, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acct, ok := m.accounts[id]; ok {
		acct.ResetToken = tokenValue
		acct.ResetExpires = &expires
		return nil
	}
	return services.ErrAccountNotFound
}

func (m *memoryStore) UpdatePasswordHash(_ context.Context, id primitive.ObjectID, hash string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acct, ok := m.accounts[id]; ok {
		acct.PasswordHash = hash
		return nil
	}
	return services.ErrAccountNotFound
}

func (m *memoryStore) UpgradeToProvider(_ context.Context, id primitive.ObjectID, profile *models.ProviderProfile, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	if !ok || acct.Role != models.RoleUser {
		return false, nil
	}
	acct.Role = models.RoleProvider
	acct.Provider = profile
	return true, nil
}

func (m *memoryStore) ApproveProvider(_ context.Context, id primitive.ObjectID, actorID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	if !ok || acct.Provider == nil || acct.Provider.ApprovalState != models.ApprovalPending || !acct.EmailVerified {
		return false, nil
	}
	acct.Provider.ApprovalState = models.ApprovalActive
	acct.Provider.ApprovedAt = &now
	acct.Provider.ApprovedBy = actorID
	return true, nil
}

func (m *memoryStore) RejectProvider(_ context.Context, id primitive.ObjectID, actorID, reason string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[id]
	if !ok || acct.Provider == nil || acct.Provider.ApprovalState != models.ApprovalPending {
		return false, nil
	}
	acct.Provider.ApprovalState = models.ApprovalRejected
	acct.Provider.RejectedAt = &now
	acct.Provider.RejectedBy = actorID
	acct.Provider.RejectionReason = reason
	return true, nil
}

func (m *memoryStore) SetStatus(_ context.Context, id primitive.ObjectID, status models.Status, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acct, ok := m.accounts[id]; ok {
		acct.Status = status
		return nil
	}
	return services.ErrAccountNotFound
}

func (m *memoryStore) PendingProviders(_ context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Account
	for _, acct := range m.accounts {
		if acct.Provider != nil && acct.Provider.ApprovalState == models.ApprovalPending {
			out = append(out, *acct)
		}
	}
	return out, nil
}

type nullMailer struct{}

func (nullMailer) SendVerificationEmail(context.Context, string, string, string) error  { return nil }
func (nullMailer) SendPasswordResetEmail(context.Context, string, string, string) error { return nil }
func (nullMailer) SendProviderApprovalEmail(context.Context, string, string, string) error {
	return nil
}
func (nullMailer) SendProviderRejectionEmail(context.Context, string, string, string, string) error {
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	issuer := token.NewIssuer("test-secret")
	accounts := services.NewAccountService(store, issuer, nullMailer{}, nil, "https://tripook.example.com")

	r := chi.NewRouter()
	routes.SetupRoutes(r, routes.Deps{
		Auth:      handlers.NewAuthHandler(accounts),
		Provider:  handlers.NewProviderHandler(accounts, nil),
		Admin:     handlers.NewAdminHandler(accounts, nil),
		LoginFeed: handlers.NewLoginFeedHandler(issuer, store, nil),
		Authn:     middleware.NewAuthenticator(issuer, store),
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func postJSON(t *testing.T, url string, body interface{}, bearer string) (*http.Response, handlers.Response) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded handlers.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func registerUser(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()
	resp, body := postJSON(t, srv.URL+"/api/auth/register", map[string]interface{}{
		"name":     "Test Traveler",
		"email":    email,
		"password": "hunter22",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestRegisterEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/api/auth/register", map[string]interface{}{
		"name":     "Test Traveler",
		"email":    "new@example.com",
		"password": "hunter22",
	}, "")

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.Token)

	user, ok := body.User.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "new@example.com", user["email"])
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, false, user["email_verified"])
	assert.NotContains(t, user, "password_hash", "hashes never leave the API")
}

func TestRegisterEndpointValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/api/auth/register", map[string]interface{}{
		"name": "No Email", "password": "hunter22",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, srv.URL+"/api/auth/register", map[string]interface{}{
		"name": "Short", "email": "short@example.com", "password": "123",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := postJSON(t, srv.URL+"/api/auth/register", map[string]interface{}{
		"name": "Bad Phone", "email": "phone@example.com", "password": "hunter22",
		"phone": "not-a-phone-###",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, strings.ToLower(body.Message), "phone")
}

func TestRegisterEndpointDuplicate(t *testing.T) {
	srv, _ := newTestServer(t)
	registerUser(t, srv, "dup@example.com")

	resp, _ := postJSON(t, srv.URL+"/api/auth/register", map[string]interface{}{
		"name": "Again", "email": "dup@example.com", "password": "hunter22",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	registerUser(t, srv, "login@example.com")

	resp, body := postJSON(t, srv.URL+"/api/auth/login", map[string]interface{}{
		"identifier": "login@example.com",
		"password":   "hunter22",
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body.Token)

	resp, _ = postJSON(t, srv.URL+"/api/auth/login", map[string]interface{}{
		"identifier": "login@example.com",
		"password":   "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProfileEndpointRequiresAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	sessionToken := registerUser(t, srv, "me@example.com")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/auth/profile", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer "+sessionToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body handlers.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	user, ok := body.User.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "me@example.com", user["email"])
}

func TestVerifyEmailEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	registerUser(t, srv, "verify@example.com")

	acct, err := store.FindByEmail(context.Background(), "verify@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, acct.VerificationToken)

	resp, body := postJSON(t, srv.URL+"/api/auth/verify-email", map[string]interface{}{
		"token": acct.VerificationToken,
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)

	// Replay fails.
	resp, _ = postJSON(t, srv.URL+"/api/auth/verify-email", map[string]interface{}{
		"token": acct.VerificationToken,
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestForgotPasswordEndpointNeverRevealsExistence(t *testing.T) {
	srv, _ := newTestServer(t)
	registerUser(t, srv, "known@example.com")

	respKnown, bodyKnown := postJSON(t, srv.URL+"/api/auth/forgot-password",
		map[string]interface{}{"email": "known@example.com"}, "")
	respGhost, bodyGhost := postJSON(t, srv.URL+"/api/auth/forgot-password",
		map[string]interface{}{"email": "ghost@example.com"}, "")

	assert.Equal(t, http.StatusOK, respKnown.StatusCode)
	assert.Equal(t, http.StatusOK, respGhost.StatusCode)
	assert.Equal(t, bodyKnown.Message, bodyGhost.Message)
}

func TestResetPasswordEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	registerUser(t, srv, "reset@example.com")

	resp, _ := postJSON(t, srv.URL+"/api/auth/forgot-password",
		map[string]interface{}{"email": "reset@example.com"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	acct, err := store.FindByEmail(context.Background(), "reset@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, acct.ResetToken)

	resp, _ = postJSON(t, srv.URL+"/api/auth/reset-password", map[string]interface{}{
		"token":    acct.ResetToken,
		"password": "brand-new-pass",
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = postJSON(t, srv.URL+"/api/auth/login", map[string]interface{}{
		"identifier": "reset@example.com",
		"password":   "brand-new-pass",
	}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestBecomeProviderEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	sessionToken := registerUser(t, srv, "biz@example.com")

	resp, body := postJSON(t, srv.URL+"/api/provider/become-provider", map[string]interface{}{
		"company_name":  "Wander Tours",
		"business_type": "tour_operator",
	}, sessionToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	user, ok := body.User.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "provider", user["role"])

	provider, ok := user["provider"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pending", provider["approval_state"])

	// A second application is rejected.
	resp, _ = postJSON(t, srv.URL+"/api/provider/become-provider", map[string]interface{}{
		"company_name":  "Again",
		"business_type": "hotel",
	}, sessionToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminEndpointsRequireAdminRole(t *testing.T) {
	srv, _ := newTestServer(t)
	sessionToken := registerUser(t, srv, "pleb@example.com")

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/admin/providers/pending", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+sessionToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSendVerificationEndpointRateLimited(t *testing.T) {
	srv, _ := newTestServer(t)
	sessionToken := registerUser(t, srv, "resend@example.com")

	// Registration already sent one; the immediate resend hits the cooldown.
	resp, body := postJSON(t, srv.URL+"/api/auth/send-verification", map[string]interface{}{}, sessionToken)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Greater(t, body.RetryAfter, 0)
	assert.Contains(t, strings.ToLower(body.Message), "wait")
}
