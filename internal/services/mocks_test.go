package services_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vin-sipoi/jengahacks-api/internal/models"
	"github.com/vin-sipoi/jengahacks-api/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// memCounterStore implements services.CounterStore in memory
type memCounterStore struct {
	mu      sync.Mutex
	counts  map[string]int
	failErr error
}

func newMemCounterStore() *memCounterStore {
	return &memCounterStore{counts: make(map[string]int)}
}

func counterKey(identifier string, dim models.Dimension, windowStart time.Time) string {
	return fmt.Sprintf("%s|%s|%d", identifier, dim, windowStart.Unix())
}

func (m *memCounterStore) Increment(ctx context.Context, identifier string, dim models.Dimension, windowStart time.Time) (int, error) {
	if m.failErr != nil {
		return 0, m.failErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := counterKey(identifier, dim, windowStart)
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memCounterStore) Get(ctx context.Context, identifier string, dim models.Dimension, windowStart time.Time) (int, error) {
	if m.failErr != nil {
		return 0, m.failErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[counterKey(identifier, dim, windowStart)], nil
}

func (m *memCounterStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// memBlockStore implements services.BlockStore in memory
type memBlockStore struct {
	mu      sync.Mutex
	entries map[string]*models.BlockEntry
	nextID  int
	failErr error
}

func newMemBlockStore() *memBlockStore {
	return &memBlockStore{entries: make(map[string]*models.BlockEntry)}
}

func blockKey(identifier string, dim models.Dimension) string {
	return identifier + "|" + string(dim)
}

func (m *memBlockStore) Upsert(ctx context.Context, identifier string, dim models.Dimension, reason, blockedBy string, expiresAt *time.Time) (*models.BlockEntry, bool, error) {
	if m.failErr != nil {
		return nil, false, m.failErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := blockKey(identifier, dim)
	if existing, ok := m.entries[key]; ok && existing.IsActive {
		existing.Reason = reason
		existing.BlockedBy = blockedBy
		existing.ExpiresAt = expiresAt
		return existing, false, nil
	}

	m.nextID++
	entry := &models.BlockEntry{
		ID:         fmt.Sprintf("blk-%d", m.nextID),
		Identifier: identifier,
		Dimension:  dim,
		Reason:     reason,
		BlockedBy:  blockedBy,
		BlockedAt:  time.Now(),
		ExpiresAt:  expiresAt,
		IsActive:   true,
	}
	m.entries[key] = entry
	return entry, true, nil
}

func (m *memBlockStore) Deactivate(ctx context.Context, identifier string, dim models.Dimension, unblockedBy string) (int64, error) {
	if m.failErr != nil {
		return 0, m.failErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[blockKey(identifier, dim)]; ok && entry.IsActive {
		entry.IsActive = false
		return 1, nil
	}
	return 0, nil
}

func (m *memBlockStore) GetActive(ctx context.Context, identifier string, dim models.Dimension) (*models.BlockEntry, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[blockKey(identifier, dim)]
	if !ok || !entry.IsActive || entry.Expired(time.Now()) {
		return nil, models.ErrNotFound
	}
	return entry, nil
}

func (m *memBlockStore) ListActive(ctx context.Context, limit, offset int) ([]*models.BlockEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make([]*models.BlockEntry, 0)
	for _, entry := range m.entries {
		if entry.IsActive && !entry.Expired(time.Now()) {
			active = append(active, entry)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active, nil
}

func (m *memBlockStore) CountActive(ctx context.Context) (int64, error) {
	entries, _ := m.ListActive(ctx, 0, 0)
	return int64(len(entries)), nil
}

// memViolationStore implements services.ViolationStore in memory
type memViolationStore struct {
	mu        sync.Mutex
	records   []*models.ViolationRecord
	insertErr error
}

func newMemViolationStore() *memViolationStore {
	return &memViolationStore{}
}

func (m *memViolationStore) Insert(ctx context.Context, v *models.ViolationRecord) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := *v
	rec.ID = fmt.Sprintf("vio-%d", len(m.records)+1)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records = append(m.records, &rec)
	return nil
}

func (m *memViolationStore) ListRecent(ctx context.Context, limit, offset int) ([]*models.ViolationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.ViolationRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *memViolationStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, r := range m.records {
		if !r.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memViolationStore) CountForIdentifier(ctx context.Context, identifier string, dim models.Dimension, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, r := range m.records {
		if r.Identifier == identifier && r.Dimension == dim && !r.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memViolationStore) GroupedSince(ctx context.Context, since time.Time, minCount int) ([]models.ViolatorGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byKey := make(map[string]*models.ViolatorGroup)
	for _, r := range m.records {
		if r.CreatedAt.Before(since) {
			continue
		}
		key := r.Identifier + "|" + string(r.Dimension)
		g, ok := byKey[key]
		if !ok {
			g = &models.ViolatorGroup{Identifier: r.Identifier, Dimension: r.Dimension}
			byKey[key] = g
		}
		g.Count++
		if r.CreatedAt.After(g.LastSeen) {
			g.LastSeen = r.CreatedAt
		}
	}

	groups := make([]models.ViolatorGroup, 0)
	for _, g := range byKey {
		if g.Count >= minCount {
			groups = append(groups, *g)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Count > groups[j].Count })
	return groups, nil
}

func (m *memViolationStore) CorrelatedEmails(ctx context.Context, sourceDim models.Dimension, since time.Time, minDistinct int) ([]models.CorrelatedGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type agg struct {
		emails map[string]bool
		count  int
		first  time.Time
		last   time.Time
	}
	bySource := make(map[string]*agg)

	for _, r := range m.records {
		if r.CreatedAt.Before(since) || r.Email == nil {
			continue
		}
		var source *string
		switch sourceDim {
		case models.DimensionIP:
			source = r.IPAddress
		case models.DimensionClient:
			source = r.ClientID
		}
		if source == nil {
			continue
		}

		a, ok := bySource[*source]
		if !ok {
			a = &agg{emails: make(map[string]bool), first: r.CreatedAt, last: r.CreatedAt}
			bySource[*source] = a
		}
		a.emails[*r.Email] = true
		a.count++
		if r.CreatedAt.Before(a.first) {
			a.first = r.CreatedAt
		}
		if r.CreatedAt.After(a.last) {
			a.last = r.CreatedAt
		}
	}

	groups := make([]models.CorrelatedGroup, 0)
	for source, a := range bySource {
		if len(a.emails) < minDistinct {
			continue
		}
		emails := make([]string, 0, len(a.emails))
		for e := range a.emails {
			emails = append(emails, e)
		}
		sort.Strings(emails)
		groups = append(groups, models.CorrelatedGroup{
			Source:    source,
			Dimension: sourceDim,
			Emails:    emails,
			Count:     a.count,
			FirstSeen: a.first,
			LastSeen:  a.last,
		})
	}
	return groups, nil
}

func (m *memViolationStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	var deleted int64
	for _, r := range m.records {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// memAlertStore implements services.AlertStore in memory
type memAlertStore struct {
	mu     sync.Mutex
	alerts map[string]*models.ViolationAlert
	nextID int
}

func newMemAlertStore() *memAlertStore {
	return &memAlertStore{alerts: make(map[string]*models.ViolationAlert)}
}

func (m *memAlertStore) Upsert(ctx context.Context, a *models.ViolationAlert) (*models.ViolationAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := a.Identifier + "|" + string(a.Dimension) + "|" + a.AlertType
	if existing, ok := m.alerts[key]; ok && !existing.IsResolved {
		existing.ViolationCount = a.ViolationCount
		existing.Severity = a.Severity
		existing.Message = a.Message
		return existing, nil
	}

	m.nextID++
	stored := *a
	stored.ID = fmt.Sprintf("alert-%d", m.nextID)
	stored.CreatedAt = time.Now()
	m.alerts[key] = &stored
	return &stored, nil
}

func (m *memAlertStore) List(ctx context.Context, openOnly bool, limit, offset int) ([]*models.ViolationAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.ViolationAlert, 0)
	for _, a := range m.alerts {
		if openOnly && a.IsResolved {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memAlertStore) Resolve(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.ID == id {
			a.IsResolved = true
			return nil
		}
	}
	return models.ErrNotFound
}

// memRegistrationStore implements services.RegistrationStore in memory
type memRegistrationStore struct {
	mu        sync.Mutex
	byEmail   map[string]*models.Registration
	byToken   map[string]*models.Registration
	nextID    int
	createErr error
}

func newMemRegistrationStore() *memRegistrationStore {
	return &memRegistrationStore{
		byEmail: make(map[string]*models.Registration),
		byToken: make(map[string]*models.Registration),
	}
}

func (m *memRegistrationStore) Create(ctx context.Context, reg *models.Registration) (*models.Registration, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byEmail[reg.Email]; ok {
		return nil, models.ErrConflict
	}
	if _, ok := m.byToken[reg.AccessTokenHash]; ok {
		return nil, repositories.ErrTokenCollision
	}

	m.nextID++
	stored := *reg
	stored.ID = fmt.Sprintf("reg-%d", m.nextID)
	stored.CreatedAt = time.Now()
	m.byEmail[stored.Email] = &stored
	m.byToken[stored.AccessTokenHash] = &stored
	return &stored, nil
}

func (m *memRegistrationStore) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.byToken[tokenHash]
	if !ok {
		return nil, models.ErrNotFound
	}
	return reg, nil
}

func (m *memRegistrationStore) Cancel(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.byToken[tokenHash]
	if !ok {
		return models.ErrNotFound
	}
	if reg.CancelledAt == nil {
		now := time.Now()
		reg.CancelledAt = &now
	}
	return nil
}

func (m *memRegistrationStore) CountActive(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	for _, reg := range m.byEmail {
		if reg.CancelledAt == nil && !reg.IsWaitlist {
			count++
		}
	}
	return count, nil
}

func (m *memRegistrationStore) Counts(ctx context.Context) (total, waitlisted, cancelled int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, reg := range m.byEmail {
		total++
		if reg.IsWaitlist && reg.CancelledAt == nil {
			waitlisted++
		}
		if reg.CancelledAt != nil {
			cancelled++
		}
	}
	return total, waitlisted, cancelled, nil
}

// memPatternStore implements services.PatternStore in memory
type memPatternStore struct {
	mu       sync.Mutex
	patterns []*models.ViolationPattern
}

func newMemPatternStore() *memPatternStore {
	return &memPatternStore{}
}

func (m *memPatternStore) Insert(ctx context.Context, p *models.ViolationPattern) (*models.ViolationPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *p
	stored.ID = fmt.Sprintf("pat-%d", len(m.patterns)+1)
	m.patterns = append(m.patterns, &stored)
	return &stored, nil
}

func (m *memPatternStore) ListRecent(ctx context.Context, limit, offset int) ([]*models.ViolationPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.ViolationPattern, len(m.patterns))
	copy(out, m.patterns)
	return out, nil
}
