package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vin-sipoi/jengahacks-api/internal/identity"
	"github.com/vin-sipoi/jengahacks-api/internal/models"
	"github.com/vin-sipoi/jengahacks-api/internal/services"
	pkghttp "github.com/vin-sipoi/jengahacks-api/pkg/http"
)

// AdminHandler handles the abuse-monitoring admin surface.
type AdminHandler struct {
	admin      *services.AdminService
	blocks     *services.BlockService
	violations *services.ViolationService
	patterns   *services.PatternService
	escalation *services.EscalationService
	config     AdminConfig
	logger     *slog.Logger
}

// AdminConfig carries the escalation defaults used when a request does
// not override them.
type AdminConfig struct {
	EscalationThreshold int
	EscalationLookback  time.Duration
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	admin *services.AdminService,
	blocks *services.BlockService,
	violations *services.ViolationService,
	patterns *services.PatternService,
	escalation *services.EscalationService,
	cfg AdminConfig,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		admin:      admin,
		blocks:     blocks,
		violations: violations,
		patterns:   patterns,
		escalation: escalation,
		config:     cfg,
		logger:     logger,
	}
}

// parsePagination reads ?limit and ?offset with sane bounds
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// GetStats GET /admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to load dashboard stats", slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusInternalServerError, models.CodeInternalError,
			"failed to retrieve stats")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

// GetRateLimit GET /admin/rate-limits?email=... or ?ip=...
func (h *AdminHandler) GetRateLimit(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	ip := r.URL.Query().Get("ip")

	var (
		info *services.RateLimitInfo
		err  error
	)
	switch {
	case email != "":
		info, err = h.admin.EmailRateLimitInfo(r.Context(), email)
	case ip != "":
		info, err = h.admin.IPRateLimitInfo(r.Context(), ip)
	default:
		pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError,
			"provide an email or ip query parameter")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, info)
}

// ListViolations GET /admin/violations
func (h *AdminHandler) ListViolations(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	records, err := h.violations.Recent(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list violations", slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusInternalServerError, models.CodeInternalError,
			"failed to retrieve violations")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"violations": records,
		"limit":      limit,
		"offset":     offset,
	})
}

// ListAlerts GET /admin/alerts?open=true
func (h *AdminHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	openOnly := r.URL.Query().Get("open") != "false"

	alerts, err := h.violations.Alerts(r.Context(), openOnly, limit, offset)
	if err != nil {
		h.logger.Error("failed to list alerts", slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusInternalServerError, models.CodeInternalError,
			"failed to retrieve alerts")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"limit":  limit,
		"offset": offset,
	})
}

// ResolveAlert POST /admin/alerts/{id}/resolve
func (h *AdminHandler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError, "invalid alert id")
		return
	}

	if err := h.violations.ResolveAlert(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "alert resolved"})
}

// DetectPatterns GET /admin/patterns?lookback_hours=24&min_confidence=0.5
// runs the detector on demand over the violation log.
func (h *AdminHandler) DetectPatterns(w http.ResponseWriter, r *http.Request) {
	lookbackHours := 24
	minConfidence := 0.5

	if lh := r.URL.Query().Get("lookback_hours"); lh != "" {
		n, err := strconv.Atoi(lh)
		if err != nil || n < 1 || n > 168 {
			pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError,
				"lookback_hours must be between 1 and 168")
			return
		}
		lookbackHours = n
	}
	if mc := r.URL.Query().Get("min_confidence"); mc != "" {
		f, err := strconv.ParseFloat(mc, 64)
		if err != nil || f < 0 || f > 1 {
			pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError,
				"min_confidence must be between 0 and 1")
			return
		}
		minConfidence = f
	}

	found, err := h.patterns.Detect(r.Context(), time.Duration(lookbackHours)*time.Hour, minConfidence)
	if err != nil {
		h.logger.Error("pattern detection failed", slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusInternalServerError, models.CodeInternalError,
			"pattern detection failed")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"patterns": found,
		"count":    len(found),
	})
}

// PatternHistory GET /admin/patterns/history returns previously detected
// patterns without re-running the detector.
func (h *AdminHandler) PatternHistory(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	patterns, err := h.patterns.Stored(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list patterns", slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusInternalServerError, models.CodeInternalError,
			"failed to retrieve patterns")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"patterns": patterns,
		"limit":    limit,
		"offset":   offset,
	})
}

// ListBlocks GET /admin/blocks
func (h *AdminHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	entries, err := h.blocks.ListActive(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list blocks", slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusInternalServerError, models.CodeInternalError,
			"failed to retrieve blocks")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"blocks": entries,
		"limit":  limit,
		"offset": offset,
	})
}

// CreateBlockRequest represents a manual block submission
type CreateBlockRequest struct {
	Identifier string `json:"identifier" validate:"required,max=254"`
	Dimension  string `json:"dimension" validate:"required,oneof=email ip client"`
	Reason     string `json:"reason" validate:"required,min=3,max=500"`
	BlockedBy  string `json:"blocked_by" validate:"required,max=100"`
	TTLHours   int    `json:"ttl_hours,omitempty" validate:"omitempty,min=1,max=8760"`
}

// CreateBlock POST /admin/blocks
func (h *AdminHandler) CreateBlock(w http.ResponseWriter, r *http.Request) {
	var req CreateBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError, err.Error())
		return
	}

	id, err := identity.Normalize(req.Identifier, models.Dimension(req.Dimension))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	created, err := h.blocks.Block(r.Context(), id, req.Reason, req.BlockedBy,
		time.Duration(req.TTLHours)*time.Hour)
	if err != nil {
		h.logger.Error("failed to create block", slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusInternalServerError, models.CodeInternalError,
			"failed to create block")
		return
	}

	status := http.StatusCreated
	message := "identifier blocked"
	if !created {
		status = http.StatusOK
		message = "identifier was already blocked; reason updated"
	}
	pkghttp.WriteJSON(w, status, map[string]string{"message": message})
}

// DeleteBlockRequest identifies the block to lift
type DeleteBlockRequest struct {
	Identifier  string `json:"identifier" validate:"required,max=254"`
	Dimension   string `json:"dimension" validate:"required,oneof=email ip client"`
	UnblockedBy string `json:"unblocked_by" validate:"required,max=100"`
}

// DeleteBlock DELETE /admin/blocks
func (h *AdminHandler) DeleteBlock(w http.ResponseWriter, r *http.Request) {
	var req DeleteBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError, "invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError, err.Error())
		return
	}

	id, err := identity.Normalize(req.Identifier, models.Dimension(req.Dimension))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.blocks.Unblock(r.Context(), id, req.UnblockedBy); err != nil {
		h.logger.Error("failed to lift block", slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusInternalServerError, models.CodeInternalError,
			"failed to lift block")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"message": "block lifted"})
}

// EscalateRequest tunes one escalation sweep
type EscalateRequest struct {
	Threshold     int `json:"threshold,omitempty" validate:"omitempty,min=2"`
	LookbackHours int `json:"lookback_hours,omitempty" validate:"omitempty,min=1,max=168"`
}

// Escalate POST /admin/escalate runs one auto-block sweep over the
// violation log and reports what it blocked.
func (h *AdminHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	threshold := h.config.EscalationThreshold
	lookback := h.config.EscalationLookback

	if r.Body != nil && r.ContentLength != 0 {
		var req EscalateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError, "invalid request body")
			return
		}
		if err := ValidateRequest(req); err != nil {
			pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError, err.Error())
			return
		}
		if req.Threshold > 0 {
			threshold = req.Threshold
		}
		if req.LookbackHours > 0 {
			lookback = time.Duration(req.LookbackHours) * time.Hour
		}
	}

	blocked, err := h.escalation.AutoBlockPersistentViolators(r.Context(), threshold, lookback)
	if err != nil {
		h.logger.Error("escalation sweep failed", slog.Any("error", err))
		pkghttp.WriteError(w, http.StatusInternalServerError, models.CodeInternalError,
			"escalation sweep failed")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"blocked": blocked,
		"count":   len(blocked),
	})
}
