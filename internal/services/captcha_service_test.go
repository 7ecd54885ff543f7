package services_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vin-sipoi/jengahacks-api/internal/config"
	"github.com/vin-sipoi/jengahacks-api/internal/services"
)

func testCaptchaConfig(verifyURL string) config.CaptchaConfig {
	return config.CaptchaConfig{
		Secret:       "test-secret",
		VerifyURL:    verifyURL,
		Timeout:      5 * time.Second,
		VerifyPerSec: 100,
		VerifyBurst:  100,
	}
}

func TestCaptchaServiceVerify_Success(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"secret":   r.FormValue("secret"),
			"response": r.FormValue("response"),
			"remoteip": r.FormValue("remoteip"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "hostname": "jengahacks.example"}`))
	}))
	defer server.Close()

	service := services.NewCaptchaService(testCaptchaConfig(server.URL), testLogger())

	result, err := service.Verify(context.Background(), "challenge-token", "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "jengahacks.example", result.Hostname)

	assert.Equal(t, "test-secret", gotForm["secret"])
	assert.Equal(t, "challenge-token", gotForm["response"])
	assert.Equal(t, "203.0.113.7", gotForm["remoteip"])
}

func TestCaptchaServiceVerify_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "error-codes": ["invalid-input-response"]}`))
	}))
	defer server.Close()

	service := services.NewCaptchaService(testCaptchaConfig(server.URL), testLogger())

	result, err := service.Verify(context.Background(), "bad-token", "")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Errors, "invalid-input-response")
}

func TestCaptchaServiceVerify_EmptyTokenShortCircuits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("verifier must not be called for an empty token")
	}))
	defer server.Close()

	service := services.NewCaptchaService(testCaptchaConfig(server.URL), testLogger())

	result, err := service.Verify(context.Background(), "   ", "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Errors, "missing-input-response")
}

func TestCaptchaServiceVerify_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	service := services.NewCaptchaService(testCaptchaConfig(server.URL), testLogger())

	_, err := service.Verify(context.Background(), "challenge-token", "")
	assert.Error(t, err)
}

func TestCaptchaServiceVerify_UnknownIPNotForwarded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Empty(t, r.FormValue("remoteip"))
		w.Write([]byte(`{"success": true}`))
	}))
	defer server.Close()

	service := services.NewCaptchaService(testCaptchaConfig(server.URL), testLogger())

	_, err := service.Verify(context.Background(), "challenge-token", "unknown")
	require.NoError(t, err)
}
