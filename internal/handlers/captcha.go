package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vin-sipoi/jengahacks-api/internal/models"
	pkghttp "github.com/vin-sipoi/jengahacks-api/pkg/http"
)

// CaptchaHandler handles standalone captcha verification requests,
// letting clients pre-validate a challenge before submitting the form.
type CaptchaHandler struct {
	captcha  CaptchaVerifier
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewCaptchaHandler creates a new CaptchaHandler
func NewCaptchaHandler(captcha CaptchaVerifier, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *CaptchaHandler {
	return &CaptchaHandler{
		captcha:  captcha,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// VerifyCaptchaRequest represents a captcha verification submission
type VerifyCaptchaRequest struct {
	CaptchaToken string `json:"captcha_token" validate:"required"`
}

// VerifyCaptchaResponse reports the verifier's verdict
type VerifyCaptchaResponse struct {
	Valid      bool     `json:"valid"`
	Score      *float64 `json:"score,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	ErrorCodes []string `json:"error_codes,omitempty"`
}

// Verify POST /verify-captcha
func (h *CaptchaHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyCaptchaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError, "invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError, err.Error())
		return
	}

	clientIP := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.captcha.Verify(r.Context(), req.CaptchaToken, clientIP)
	if err != nil {
		h.logger.Error("captcha verification unavailable", slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusInternalServerError, models.CodeInternalError,
			"captcha verification unavailable")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, VerifyCaptchaResponse{
		Valid:      result.Success,
		Score:      result.Score,
		Hostname:   result.Hostname,
		ErrorCodes: result.Errors,
	})
}
