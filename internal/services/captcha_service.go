package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/vin-sipoi/jengahacks-api/internal/config"
	"golang.org/x/time/rate"
)

// CaptchaResult is the upstream verifier's answer for one token.
type CaptchaResult struct {
	Success  bool     `json:"success"`
	Score    *float64 `json:"score,omitempty"`
	Hostname string   `json:"hostname,omitempty"`
	Errors   []string `json:"error-codes,omitempty"`
}

// CaptchaService verifies challenge tokens against the upstream
// verification endpoint. Outbound calls go through a token-bucket
// throttle so a burst of registrations cannot hammer the verifier past
// its own quota.
type CaptchaService struct {
	client    *http.Client
	verifyURL string
	secret    string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewCaptchaService creates a new CaptchaService
func NewCaptchaService(cfg config.CaptchaConfig, logger *slog.Logger) *CaptchaService {
	return &CaptchaService{
		client:    &http.Client{Timeout: cfg.Timeout},
		verifyURL: cfg.VerifyURL,
		secret:    cfg.Secret,
		limiter:   rate.NewLimiter(rate.Limit(cfg.VerifyPerSec), cfg.VerifyBurst),
		logger:    logger,
	}
}

// Verify checks one challenge token. remoteIP is forwarded when known so
// the verifier can bind the challenge to the solver's address.
func (s *CaptchaService) Verify(ctx context.Context, captchaToken, remoteIP string) (*CaptchaResult, error) {
	if strings.TrimSpace(captchaToken) == "" {
		return &CaptchaResult{Success: false, Errors: []string{"missing-input-response"}}, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("captcha verify throttle: %w", err)
	}

	form := url.Values{}
	form.Set("secret", s.secret)
	form.Set("response", captchaToken)
	if remoteIP != "" && remoteIP != "unknown" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("captcha verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("captcha verify call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("captcha verifier returned status %d", resp.StatusCode)
	}

	var result CaptchaResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("captcha verify decode: %w", err)
	}

	if !result.Success {
		s.logger.Info("captcha verification failed",
			slog.Any("error_codes", result.Errors))
	}

	return &result, nil
}
