package scheduling

import (
	"fmt"
	"time"
)

type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusCanceled  AppointmentStatus = "canceled"
	StatusCompleted AppointmentStatus = "completed"
)

type MeetingType string

const (
	MeetingPhone    MeetingType = "phone"
	MeetingVideo    MeetingType = "video"
	MeetingInPerson MeetingType = "in_person"
)

func (m MeetingType) Valid() bool {
	switch m {
	case MeetingPhone, MeetingVideo, MeetingInPerson:
		return true
	}
	return false
}

type BookedBy string

const (
	BookedByClient     BookedBy = "client"
	BookedByAdmin      BookedBy = "admin"
	BookedByVoiceAgent BookedBy = "voice_agent"
)

func (b BookedBy) Valid() bool {
	switch b {
	case BookedByClient, BookedByAdmin, BookedByVoiceAgent:
		return true
	}
	return false
}

// CalendarSync tracks whether the external calendar reflects an appointment.
type CalendarSync string

const (
	SyncSynced  CalendarSync = "synced"
	SyncPending CalendarSync = "pending"
	SyncNone    CalendarSync = "none"
)

type Tenant struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Timezone            string    `json:"timezone"`
	SlotDurationMinutes int       `json:"slot_duration_minutes"`
	BufferMinutes       int       `json:"buffer_minutes"`
	MaxSlots            int       `json:"max_slots"`
	CreatedAt           time.Time `json:"created_at,omitempty"`
	UpdatedAt           time.Time `json:"updated_at,omitempty"`
}

// Location resolves the tenant's configured timezone.
func (t *Tenant) Location() (*time.Location, error) {
	if t.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return nil, &ValidationError{Field: "timezone", Reason: fmt.Sprintf("unknown timezone %q", t.Timezone)}
	}
	return loc, nil
}

// AvailabilityRule is a recurring weekly window in the tenant's wall-clock time.
// StartTime and EndTime are "HH:MM".
type AvailabilityRule struct {
	ID        int       `json:"id"`
	TenantID  string    `json:"tenant_id"`
	DayOfWeek int       `json:"day_of_week"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Attribution struct {
	BookedBy    BookedBy `json:"booked_by"`
	CallerName  string   `json:"caller_name,omitempty"`
	CallerPhone string   `json:"caller_phone,omitempty"`
	CallerEmail string   `json:"caller_email,omitempty"`
	CallRef     string   `json:"call_ref,omitempty"`
}

type Appointment struct {
	ID               string            `json:"id"`
	TenantID         string            `json:"tenant_id"`
	StartAt          time.Time         `json:"start_at"`
	DurationMinutes  int               `json:"duration_minutes"`
	Type             MeetingType       `json:"type"`
	Status           AppointmentStatus `json:"status"`
	Attribution      Attribution       `json:"attribution"`
	Notes            string            `json:"notes,omitempty"`
	ExternalEventRef string            `json:"external_event_ref,omitempty"`
	CalendarSync     CalendarSync      `json:"calendar_sync"`
	CreatedAt        time.Time         `json:"created_at,omitempty"`
	UpdatedAt        time.Time         `json:"updated_at,omitempty"`
}

func (a *Appointment) EndAt() time.Time {
	return a.StartAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// BusyPeriod is a half-open interval [Start, End). Never cached across requests.
type BusyPeriod struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Source string    `json:"source"`
}

const (
	BusySourceLocal    = "local"
	BusySourceExternal = "external"
)

type CandidateSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// FreeBusy is the result of an external free/busy lookup. Connected is false
// when the tenant has no usable calendar credential.
type FreeBusy struct {
	Connected bool
	Busy      []BusyPeriod
}

type EventRequest struct {
	Title         string
	Description   string
	Start         time.Time
	End           time.Time
	Timezone      string
	AttendeeEmail string
}

type OutboxAction string

const (
	OutboxCreateEvent OutboxAction = "create"
	OutboxDeleteEvent OutboxAction = "delete"
)

// OutboxEntry is a deferred calendar write that must eventually succeed.
type OutboxEntry struct {
	ID            string
	TenantID      string
	AppointmentID string
	Action        OutboxAction
	EventRef      string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
}
