package handlers

import (
	"encoding/json"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/tripook/tripook-backend/internal/middleware"
	"github.com/tripook/tripook-backend/internal/services"
	"github.com/tripook/tripook-backend/pkg/clientip"
	"github.com/tripook/tripook-backend/pkg/utils"
)

// AuthHandler serves the public authentication endpoints.
type AuthHandler struct {
	accounts *services.AccountService
}

func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type registerRequest struct {
	Name     string                  `json:"name"`
	Email    string                  `json:"email"`
	Password string                  `json:"password"`
	Username string                  `json:"username,omitempty"`
	Phone    string                  `json:"phone,omitempty"`
	Business *businessProfileRequest `json:"business,omitempty"`
}

type businessProfileRequest struct {
	CompanyName   string `json:"company_name"`
	BusinessType  string `json:"business_type"`
	BusinessPhone string `json:"business_phone,omitempty"`
	BusinessEmail string `json:"business_email,omitempty"`
	Description   string `json:"description,omitempty"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (r businessProfileRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CompanyName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.BusinessType, validation.Required),
		validation.Field(&r.BusinessEmail, is.Email),
	)
}

// Register creates an account and returns it with a session token. The
// verification email is dispatched in the background.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if req.Username != "" {
		if err := utils.ValidateUsername(req.Username); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Business != nil {
		if err := req.Business.Validate(); err != nil {
			writeError(w, err)
			return
		}
	}

	in := services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		Phone:    req.Phone,
	}
	if req.Business != nil {
		in.Business = &services.BusinessProfileInput{
			CompanyName:   req.Business.CompanyName,
			BusinessType:  req.Business.BusinessType,
			BusinessPhone: req.Business.BusinessPhone,
			BusinessEmail: req.Business.BusinessEmail,
			Description:   req.Business.Description,
		}
	}

	acct, sessionToken, err := h.accounts.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Message: "Account created. Please check your email to verify your address.",
		User:    acct,
		Token:   sessionToken,
	})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email,omitempty"` // legacy field, same as identifier
	Password   string `json:"password"`
	Remember   bool   `json:"remember,omitempty"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Password, validation.Required),
	)
}

// Login authenticates by email or username and returns a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body"})
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "identifier is required"})
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	acct, sessionToken, err := h.accounts.Login(r.Context(), identifier, req.Password,
		req.Remember, clientip.RealClientIP(r), r.UserAgent())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Signed in successfully",
		User:    acct,
		Token:   sessionToken,
	})
}

// SendVerification re-issues the verification email for the authenticated
// account, subject to the resend limits.
func (h *AuthHandler) SendVerification(w http.ResponseWriter, r *http.Request) {
	acct, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "authentication required"})
		return
	}

	count, err := h.accounts.RequestVerification(r.Context(), acct.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Verification email sent",
		Data:    map[string]int{"sent_count": count},
	})
}

// VerifyEmail consumes a verification token from the emailed link.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	tokenValue := r.URL.Query().Get("token")
	if tokenValue == "" {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			tokenValue = req.Token
		}
	}
	if tokenValue == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "token is required"})
		return
	}

	acct, err := h.accounts.VerifyEmail(r.Context(), tokenValue)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Email verified successfully",
		User:    acct,
	})
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r forgotPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// ForgotPassword issues a reset token when the account exists. The response
// is identical either way.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "If that email is registered, a reset link has been sent",
	})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (r resetPasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// ResetPassword consumes a reset token and installs the new password.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Password updated successfully",
	})
}

// Profile returns the authenticated account.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	acct, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "authentication required"})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, User: acct})
}

// CheckEmail reports whether an email address is still available.
func (h *AuthHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "email is required"})
		return
	}

	available, err := h.accounts.EmailAvailable(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]bool{"available": available},
	})
}
