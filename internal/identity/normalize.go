package identity

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/vin-sipoi/jengahacks-api/internal/models"
)

// maxEmailLength follows RFC 5321's 254-octet limit on forward paths.
const maxEmailLength = 254

// Conservative RFC 5322 subset. Deliberately rejects quoted local parts
// and address literals; a hackathon registration form never sees those.
var emailPattern = regexp.MustCompile(`^[a-z0-9!#$%&'*+/=?^_` + "`" + `{|}~.-]+@[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)

// NormalizeEmail canonicalizes a raw email for use as a rate-limit key:
// trimmed, lowercased, and checked against a conservative pattern.
func NormalizeEmail(raw string) (models.Identifier, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return models.Identifier{}, fmt.Errorf("%w: email is required", models.ErrValidation)
	}
	if len(email) > maxEmailLength {
		return models.Identifier{}, fmt.Errorf("%w: email exceeds %d characters", models.ErrValidation, maxEmailLength)
	}
	if strings.Count(email, "@") != 1 || !emailPattern.MatchString(email) {
		return models.Identifier{}, fmt.Errorf("%w: malformed email address", models.ErrValidation)
	}
	return models.Identifier{Value: email, Dimension: models.DimensionEmail}, nil
}

// NormalizeIP canonicalizes a raw IP address. Unparsable input yields the
// "unknown" identifier rather than an error: IP limiting is best-effort
// and must never hard-gate a request whose address cannot be resolved
// (proxies and privacy tools legitimately strip it).
func NormalizeIP(raw string) models.Identifier {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return models.Identifier{Value: models.UnknownIP, Dimension: models.DimensionIP}
	}
	return models.Identifier{Value: ip.String(), Dimension: models.DimensionIP}
}

// NormalizeClient passes a client fingerprint through as an opaque token.
// It originates from an untrusted client, so no validation beyond
// non-emptiness; it is a soft signal for pattern detection, never a
// deny gate on its own.
func NormalizeClient(raw string) (models.Identifier, bool) {
	fp := strings.TrimSpace(raw)
	if fp == "" {
		return models.Identifier{}, false
	}
	return models.Identifier{Value: fp, Dimension: models.DimensionClient}, true
}

// Normalize dispatches on dimension. Email is the only dimension that can
// return an error; see the per-dimension functions for the asymmetry.
func Normalize(raw string, dim models.Dimension) (models.Identifier, error) {
	switch dim {
	case models.DimensionEmail:
		return NormalizeEmail(raw)
	case models.DimensionIP:
		return NormalizeIP(raw), nil
	case models.DimensionClient:
		id, ok := NormalizeClient(raw)
		if !ok {
			return models.Identifier{}, fmt.Errorf("%w: empty client fingerprint", models.ErrValidation)
		}
		return id, nil
	default:
		return models.Identifier{}, fmt.Errorf("%w: unknown dimension %q", models.ErrValidation, dim)
	}
}
