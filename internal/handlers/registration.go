package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
	"github.com/vin-sipoi/jengahacks-api/internal/services"
	pkghttp "github.com/vin-sipoi/jengahacks-api/pkg/http"
)

// RegistrationServiceInterface defines the interface for registration operations
type RegistrationServiceInterface interface {
	Register(ctx context.Context, req services.RegistrationRequest) (*services.RegistrationResult, error)
	Lookup(ctx context.Context, plainToken string) (*models.Registration, error)
	Cancel(ctx context.Context, plainToken string) error
}

// CaptchaVerifier defines the interface for captcha token verification
type CaptchaVerifier interface {
	Verify(ctx context.Context, captchaToken, remoteIP string) (*services.CaptchaResult, error)
}

// RegistrationHandler handles registration HTTP requests
type RegistrationHandler struct {
	service         RegistrationServiceInterface
	captcha         CaptchaVerifier
	captchaRequired bool
	ipConfig        *pkghttp.IPConfig
	logger          *slog.Logger
}

// NewRegistrationHandler creates a new RegistrationHandler
func NewRegistrationHandler(
	service RegistrationServiceInterface,
	captcha CaptchaVerifier,
	captchaRequired bool,
	ipConfig *pkghttp.IPConfig,
	logger *slog.Logger,
) *RegistrationHandler {
	return &RegistrationHandler{
		service:         service,
		captcha:         captcha,
		captchaRequired: captchaRequired,
		ipConfig:        ipConfig,
		logger:          logger,
	}
}

// Request DTOs

// RegisterRequest represents an incoming registration submission
type RegisterRequest struct {
	FullName       string `json:"full_name" validate:"required,min=2,max=100"`
	Email          string `json:"email" validate:"required,max=254"`
	WhatsappNumber string `json:"whatsapp_number,omitempty" validate:"omitempty,e164"`
	LinkedinURL    string `json:"linkedin_url,omitempty" validate:"omitempty,url,max=255"`
	ResumePath     string `json:"resume_path,omitempty" validate:"omitempty,max=512"`
	CaptchaToken   string `json:"captcha_token,omitempty"`
	ClientID       string `json:"client_id,omitempty" validate:"omitempty,max=128"`
}

// RegistrationDTO is the response DTO for registrations (never includes
// the token hash)
type RegistrationDTO struct {
	ID             string     `json:"id"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	WhatsappNumber *string    `json:"whatsapp_number,omitempty"`
	LinkedinURL    *string    `json:"linkedin_url,omitempty"`
	ResumePath     *string    `json:"resume_path,omitempty"`
	Waitlisted     bool       `json:"waitlisted"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// RegisterResponse carries the plaintext access token exactly once
type RegisterResponse struct {
	Registration *RegistrationDTO `json:"registration"`
	AccessToken  string           `json:"access_token"`
	Message      string           `json:"message"`
}

func toRegistrationDTO(reg *models.Registration) *RegistrationDTO {
	return &RegistrationDTO{
		ID:             reg.ID,
		FullName:       reg.FullName,
		Email:          reg.Email,
		WhatsappNumber: reg.WhatsappNumber,
		LinkedinURL:    reg.LinkedinURL,
		ResumePath:     reg.ResumePath,
		Waitlisted:     reg.IsWaitlist,
		CancelledAt:    reg.CancelledAt,
		CreatedAt:      reg.CreatedAt,
	}
}

// Register POST /register
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError, "invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError, err.Error())
		return
	}

	clientIP := pkghttp.ExtractClientIP(r, h.ipConfig)

	if h.captchaRequired {
		result, err := h.captcha.Verify(r.Context(), req.CaptchaToken, clientIP)
		if err != nil {
			// The verifier being down is our outage, not the client's
			h.logger.Error("captcha verification unavailable", slog.Any("error", err))
			pkghttp.WriteError(w, http.StatusInternalServerError, models.CodeInternalError,
				"captcha verification unavailable")
			return
		}
		if !result.Success {
			pkghttp.WriteError(w, http.StatusBadRequest, models.CodeCaptchaRequired,
				"captcha verification failed")
			return
		}
	}

	result, err := h.service.Register(r.Context(), services.RegistrationRequest{
		FullName:       req.FullName,
		Email:          req.Email,
		WhatsappNumber: req.WhatsappNumber,
		LinkedinURL:    req.LinkedinURL,
		ResumePath:     req.ResumePath,
		IPAddress:      clientIP,
		ClientID:       req.ClientID,
		UserAgent:      r.UserAgent(),
		RequestPath:    r.URL.Path,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	message := "Registration confirmed. Save this access token - it will not be shown again."
	if result.Registration.IsWaitlist {
		message = "The event is at capacity; you have been added to the waitlist. Save this access token - it will not be shown again."
	}

	pkghttp.WriteJSON(w, http.StatusOK, RegisterResponse{
		Registration: toRegistrationDTO(result.Registration),
		AccessToken:  result.AccessToken,
		Message:      message,
	})
}

// Lookup GET /registrations/{token}
func (h *RegistrationHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	plainToken := chi.URLParam(r, "token")

	reg, err := h.service.Lookup(r.Context(), plainToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, toRegistrationDTO(reg))
}

// Cancel DELETE /registrations/{token}
func (h *RegistrationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	plainToken := chi.URLParam(r, "token")

	if err := h.service.Cancel(r.Context(), plainToken); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "registration cancelled",
	})
}
