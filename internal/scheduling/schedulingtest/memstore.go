// Package schedulingtest provides in-memory implementations of the scheduling
// store and calendar gateway for tests.
package schedulingtest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"booking-service/internal/scheduling"
)

// MemStore is a scheduling.Store kept in memory. InsertAppointment enforces
// the no-overlap invariant under the store mutex, like the database
// exclusion constraint does.
type MemStore struct {
	mu           sync.Mutex
	tenants      map[string]scheduling.Tenant
	rules        map[string][]scheduling.AvailabilityRule
	appointments map[string]scheduling.Appointment
	outbox       map[string]scheduling.OutboxEntry
	abandoned    map[string]scheduling.OutboxEntry
	nextRuleID   int
	calls        int

	// Err, when set, is returned by every method.
	Err error
	// InsertErr, when set, is returned by InsertAppointment only.
	InsertErr error
}

var _ scheduling.Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		tenants:      map[string]scheduling.Tenant{},
		rules:        map[string][]scheduling.AvailabilityRule{},
		appointments: map[string]scheduling.Appointment{},
		outbox:       map[string]scheduling.OutboxEntry{},
		abandoned:    map[string]scheduling.OutboxEntry{},
	}
}

// Calls counts every store method invocation.
func (m *MemStore) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MemStore) enter() error {
	m.calls++
	return m.Err
}

func (m *MemStore) GetTenant(ctx context.Context, tenantID string) (*scheduling.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, scheduling.ErrNotFound
	}
	return &t, nil
}

func (m *MemStore) UpsertTenant(ctx context.Context, t *scheduling.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	m.tenants[t.ID] = *t
	return nil
}

func (m *MemStore) ListAvailabilityRules(ctx context.Context, tenantID string) ([]scheduling.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	return append([]scheduling.AvailabilityRule(nil), m.rules[tenantID]...), nil
}

func (m *MemStore) ReplaceAvailabilityRules(ctx context.Context, tenantID string, rules []scheduling.AvailabilityRule) ([]scheduling.AvailabilityRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	saved := make([]scheduling.AvailabilityRule, 0, len(rules))
	for _, r := range rules {
		m.nextRuleID++
		r.ID = m.nextRuleID
		r.TenantID = tenantID
		saved = append(saved, r)
	}
	m.rules[tenantID] = saved
	return append([]scheduling.AvailabilityRule(nil), saved...), nil
}

func (m *MemStore) InsertAppointment(ctx context.Context, a *scheduling.Appointment, outbox *scheduling.OutboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	if m.InsertErr != nil {
		return m.InsertErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.Status == scheduling.StatusScheduled {
		for _, other := range m.appointments {
			if other.TenantID != a.TenantID || other.Status != scheduling.StatusScheduled {
				continue
			}
			if scheduling.Overlaps(a.StartAt, a.EndAt(), other.StartAt, other.EndAt()) {
				return fmt.Errorf("%w: overlaps %s", scheduling.ErrConflict, other.ID)
			}
		}
	}
	if _, dup := m.appointments[a.ID]; dup {
		return fmt.Errorf("%w: duplicate id", scheduling.ErrConflict)
	}
	now := time.Now()
	a.CreatedAt, a.UpdatedAt = now, now
	m.appointments[a.ID] = *a
	if outbox != nil {
		outbox.CreatedAt = now
		m.outbox[outbox.ID] = *outbox
	}
	return nil
}

func (m *MemStore) GetAppointment(ctx context.Context, tenantID, id string) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	a, ok := m.appointments[id]
	if !ok || a.TenantID != tenantID {
		return nil, scheduling.ErrNotFound
	}
	return &a, nil
}

func (m *MemStore) ListScheduledOverlapping(ctx context.Context, tenantID string, from, to time.Time) ([]scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	var out []scheduling.Appointment
	for _, a := range m.appointments {
		if a.TenantID == tenantID && a.Status == scheduling.StatusScheduled &&
			scheduling.Overlaps(from, to, a.StartAt, a.EndAt()) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (m *MemStore) ListAppointments(ctx context.Context, tenantID string, from, to time.Time) ([]scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	var out []scheduling.Appointment
	for _, a := range m.appointments {
		if a.TenantID != tenantID {
			continue
		}
		if !from.IsZero() && !to.IsZero() && (a.StartAt.Before(from) || !a.StartAt.Before(to)) {
			continue
		}
		out = append(out, a)
	}
	sortAppointments(out)
	return out, nil
}

func (m *MemStore) TransitionStatus(ctx context.Context, tenantID, id string, status scheduling.AppointmentStatus) (*scheduling.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	a, ok := m.appointments[id]
	if !ok || a.TenantID != tenantID {
		return nil, scheduling.ErrNotFound
	}
	if a.Status != scheduling.StatusScheduled {
		return nil, fmt.Errorf("%w: appointment is not scheduled", scheduling.ErrConflict)
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	return &a, nil
}

func (m *MemStore) SetExternalEvent(ctx context.Context, tenantID, id, eventRef string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	a, ok := m.appointments[id]
	if !ok || a.TenantID != tenantID {
		return scheduling.ErrNotFound
	}
	if a.Status != scheduling.StatusScheduled {
		return fmt.Errorf("%w: appointment is not scheduled", scheduling.ErrConflict)
	}
	a.ExternalEventRef = eventRef
	a.CalendarSync = scheduling.SyncSynced
	m.appointments[id] = a
	return nil
}

func (m *MemStore) EnqueueOutbox(ctx context.Context, e *scheduling.OutboxEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	e.CreatedAt = time.Now()
	m.outbox[e.ID] = *e
	return nil
}

func (m *MemStore) ClaimDueOutbox(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]scheduling.OutboxEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return nil, err
	}
	var due []scheduling.OutboxEntry
	for _, e := range m.outbox {
		if !e.NextAttemptAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextAttemptAt.Before(due[j].NextAttemptAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	for _, e := range due {
		e.NextAttemptAt = now.Add(lease)
		m.outbox[e.ID] = e
	}
	return due, nil
}

func (m *MemStore) CompleteOutbox(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	delete(m.outbox, id)
	return nil
}

func (m *MemStore) RetryOutbox(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	e, ok := m.outbox[id]
	if !ok {
		return scheduling.ErrNotFound
	}
	e.Attempts, e.NextAttemptAt, e.LastError = attempts, next, lastErr
	m.outbox[id] = e
	return nil
}

func (m *MemStore) AbandonOutbox(ctx context.Context, id string, lastErr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(); err != nil {
		return err
	}
	e, ok := m.outbox[id]
	if !ok {
		return scheduling.ErrNotFound
	}
	e.LastError = lastErr
	delete(m.outbox, id)
	m.abandoned[id] = e
	return nil
}

// Outbox returns pending entries ordered by next attempt.
func (m *MemStore) Outbox() []scheduling.OutboxEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scheduling.OutboxEntry, 0, len(m.outbox))
	for _, e := range m.outbox {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextAttemptAt.Before(out[j].NextAttemptAt) })
	return out
}

// Abandoned returns entries the reconciler gave up on.
func (m *MemStore) Abandoned() []scheduling.OutboxEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scheduling.OutboxEntry, 0, len(m.abandoned))
	for _, e := range m.abandoned {
		out = append(out, e)
	}
	return out
}

// Scheduled returns the tenant's scheduled appointments in start order.
func (m *MemStore) Scheduled(tenantID string) []scheduling.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []scheduling.Appointment
	for _, a := range m.appointments {
		if a.TenantID == tenantID && a.Status == scheduling.StatusScheduled {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out
}

func sortAppointments(a []scheduling.Appointment) {
	sort.Slice(a, func(i, j int) bool { return a[i].StartAt.Before(a[j].StartAt) })
}
