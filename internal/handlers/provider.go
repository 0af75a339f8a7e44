package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/tripook/tripook-backend/internal/middleware"
	"github.com/tripook/tripook-backend/internal/models"
	"github.com/tripook/tripook-backend/internal/services"
)

// maxLicenseUploadSize caps business-license uploads at 10 MB.
const maxLicenseUploadSize = 10 << 20

// ProviderHandler serves the user→provider upgrade endpoints.
type ProviderHandler struct {
	accounts *services.AccountService
	uploader services.Uploader
}

func NewProviderHandler(accounts *services.AccountService, uploader services.Uploader) *ProviderHandler {
	return &ProviderHandler{accounts: accounts, uploader: uploader}
}

type becomeProviderRequest struct {
	CompanyName   string `json:"company_name"`
	BusinessType  string `json:"business_type"`
	BusinessPhone string `json:"business_phone,omitempty"`
	BusinessEmail string `json:"business_email,omitempty"`
	Description   string `json:"description,omitempty"`
}

func (r becomeProviderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CompanyName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.BusinessType, validation.Required),
		validation.Field(&r.BusinessEmail, is.Email),
	)
}

// BecomeProvider files a provider application for the authenticated account.
// Accepts either JSON or multipart/form-data; the multipart form may attach a
// business license document which is uploaded to Cloudinary.
func (h *ProviderHandler) BecomeProvider(w http.ResponseWriter, r *http.Request) {
	acct, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "authentication required"})
		return
	}

	var req becomeProviderRequest
	licenseURL := ""

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxLicenseUploadSize); err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid multipart form"})
			return
		}
		req = becomeProviderRequest{
			CompanyName:   r.FormValue("company_name"),
			BusinessType:  r.FormValue("business_type"),
			BusinessPhone: r.FormValue("business_phone"),
			BusinessEmail: r.FormValue("business_email"),
			Description:   r.FormValue("description"),
		}

		if file, header, err := r.FormFile("business_license"); err == nil {
			file.Close()
			if h.uploader == nil {
				writeJSON(w, http.StatusBadRequest, Response{Message: "Document uploads are not configured"})
				return
			}
			url, err := h.uploader.UploadLicense(r.Context(), header)
			if err != nil {
				log.Printf("license upload failed for %s: %v", acct.ID.Hex(), err)
				writeJSON(w, http.StatusInternalServerError, Response{Message: "Failed to upload business license"})
				return
			}
			licenseURL = url
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Message: "Invalid request body"})
			return
		}
	}

	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.accounts.UpgradeToProvider(r.Context(), acct.ID, services.BusinessProfileInput{
		CompanyName:   req.CompanyName,
		BusinessType:  req.BusinessType,
		BusinessPhone: req.BusinessPhone,
		BusinessEmail: req.BusinessEmail,
		Description:   req.Description,
		LicenseURL:    licenseURL,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Provider application submitted and pending review",
		User:    updated,
	})
}

// Profile returns the authenticated provider's account, including approval
// state. Plain users get 403.
func (h *ProviderHandler) Profile(w http.ResponseWriter, r *http.Request) {
	acct, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "authentication required"})
		return
	}
	if acct.Role != models.RoleProvider {
		writeJSON(w, http.StatusForbidden, Response{Message: "provider account required"})
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, User: acct})
}
