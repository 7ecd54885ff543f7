package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vin-sipoi/jengahacks-api/internal/handlers"
	"github.com/vin-sipoi/jengahacks-api/internal/services"
)

func verifyCaptchaBody(t *testing.T, token string) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, json.NewEncoder(buf).Encode(map[string]string{"captcha_token": token}))
	return buf
}

// ── Verify ───────────────────────────────────────────────────────────────────

func TestVerifyCaptcha_SurfacesScoreAndHostname(t *testing.T) {
	score := 0.9
	captcha := &mockCaptcha{
		VerifyFunc: func(ctx context.Context, captchaToken, remoteIP string) (*services.CaptchaResult, error) {
			return &services.CaptchaResult{
				Success:  true,
				Score:    &score,
				Hostname: "jengahacks.example",
			}, nil
		},
	}
	h := handlers.NewCaptchaHandler(captcha, nil, discardLogger())

	req := httptest.NewRequest("POST", "/api/v1/verify-captcha", verifyCaptchaBody(t, "challenge-token"))
	w := httptest.NewRecorder()
	h.Verify(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool                           `json:"success"`
		Data    handlers.VerifyCaptchaResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.Valid)
	require.NotNil(t, resp.Data.Score)
	assert.Equal(t, 0.9, *resp.Data.Score)
	assert.Equal(t, "jengahacks.example", resp.Data.Hostname)
	assert.Empty(t, resp.Data.ErrorCodes)
}

func TestVerifyCaptcha_FailedChallengeCarriesErrorCodes(t *testing.T) {
	captcha := &mockCaptcha{
		VerifyFunc: func(ctx context.Context, captchaToken, remoteIP string) (*services.CaptchaResult, error) {
			return &services.CaptchaResult{Success: false, Errors: []string{"invalid-input-response"}}, nil
		},
	}
	h := handlers.NewCaptchaHandler(captcha, nil, discardLogger())

	req := httptest.NewRequest("POST", "/api/v1/verify-captcha", verifyCaptchaBody(t, "bad-token"))
	w := httptest.NewRecorder()
	h.Verify(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data handlers.VerifyCaptchaResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Valid)
	assert.Nil(t, resp.Data.Score)
	assert.Equal(t, []string{"invalid-input-response"}, resp.Data.ErrorCodes)
}

func TestVerifyCaptcha_MissingTokenRejected(t *testing.T) {
	h := handlers.NewCaptchaHandler(&mockCaptcha{}, nil, discardLogger())

	req := httptest.NewRequest("POST", "/api/v1/verify-captcha", verifyCaptchaBody(t, ""))
	w := httptest.NewRecorder()
	h.Verify(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
