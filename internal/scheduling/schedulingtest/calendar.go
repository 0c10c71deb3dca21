package schedulingtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"booking-service/internal/scheduling"
)

// FakeCalendar is a scheduling.CalendarGateway backed by memory.
type FakeCalendar struct {
	mu sync.Mutex

	Connected bool
	Busy      []scheduling.BusyPeriod

	QueryErr  error
	CreateErr error
	DeleteErr error

	// BeforeCreate, when set, runs at the start of CreateEvent outside the lock.
	BeforeCreate func()

	Events       map[string]scheduling.EventRequest
	Deleted      []string
	QueryCalls   int
	CreateCalls  int
	DeleteCalls  int
	nextEventNum int
}

var _ scheduling.CalendarGateway = (*FakeCalendar)(nil)

func NewFakeCalendar() *FakeCalendar {
	return &FakeCalendar{Connected: true, Events: map[string]scheduling.EventRequest{}}
}

func (f *FakeCalendar) QueryBusy(ctx context.Context, tenantID string, from, to time.Time) (scheduling.FreeBusy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QueryCalls++
	if f.QueryErr != nil {
		return scheduling.FreeBusy{}, f.QueryErr
	}
	if !f.Connected {
		return scheduling.FreeBusy{}, nil
	}
	var busy []scheduling.BusyPeriod
	for _, p := range f.Busy {
		if scheduling.Overlaps(from, to, p.Start, p.End) {
			busy = append(busy, p)
		}
	}
	return scheduling.FreeBusy{Connected: true, Busy: busy}, nil
}

func (f *FakeCalendar) CreateEvent(ctx context.Context, tenantID string, ev scheduling.EventRequest) (string, error) {
	if f.BeforeCreate != nil {
		f.BeforeCreate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	if !f.Connected {
		return "", scheduling.ErrCalendarNotConnected
	}
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.nextEventNum++
	ref := fmt.Sprintf("evt-%d", f.nextEventNum)
	f.Events[ref] = ev
	f.Busy = append(f.Busy, scheduling.BusyPeriod{Start: ev.Start, End: ev.End, Source: scheduling.BusySourceExternal})
	return ref, nil
}

func (f *FakeCalendar) DeleteEvent(ctx context.Context, tenantID, eventRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if !f.Connected {
		return scheduling.ErrCalendarNotConnected
	}
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if ev, ok := f.Events[eventRef]; ok {
		delete(f.Events, eventRef)
		for i, p := range f.Busy {
			if p.Start.Equal(ev.Start) && p.End.Equal(ev.End) {
				f.Busy = append(f.Busy[:i], f.Busy[i+1:]...)
				break
			}
		}
	}
	f.Deleted = append(f.Deleted, eventRef)
	return nil
}

// Calls returns query, create and delete call counts.
func (f *FakeCalendar) Calls() (query, create, del int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.QueryCalls, f.CreateCalls, f.DeleteCalls
}

// SetCreateErr changes the create failure under the fake's lock.
func (f *FakeCalendar) SetCreateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateErr = err
}
