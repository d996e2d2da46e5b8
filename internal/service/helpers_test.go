package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gatherhq/registration-service/internal/audit"
	"github.com/gatherhq/registration-service/internal/domain"
	"github.com/gatherhq/registration-service/internal/lock"
)

// memRepo is an in-memory domain.Repository. All mutations hold one mutex so
// the conditional primitives (insert, move, claim) are atomic the same way
// the real single-statement writes are.
type memRepo struct {
	mu sync.Mutex

	events    map[uuid.UUID]*domain.Event
	regs      map[uuid.UUID]*domain.Registration
	guests    map[uuid.UUID]*domain.GuestRegistration
	reminders map[string]bool
	programs  map[uuid.UUID]map[uuid.UUID]struct{}

	statusWrites int
	claimErr     error
}

func newMemRepo() *memRepo {
	return &memRepo{
		events:    make(map[uuid.UUID]*domain.Event),
		regs:      make(map[uuid.UUID]*domain.Registration),
		guests:    make(map[uuid.UUID]*domain.GuestRegistration),
		reminders: make(map[string]bool),
		programs:  make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (m *memRepo) addEvent(ev *domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.ID] = ev
}

func (m *memRepo) GetEvent(_ context.Context, eventID uuid.UUID) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	cp := *ev
	cp.Roles = append([]domain.Role(nil), ev.Roles...)
	cp.Organizers = append([]uuid.UUID(nil), ev.Organizers...)
	return &cp, nil
}

func (m *memRepo) UpdateEventStatus(_ context.Context, eventID uuid.UUID, status domain.EventStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	m.statusWrites++
	ev.Status = status
	return nil
}

func (m *memRepo) RecalculateSignedUp(_ context.Context, eventID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	n := 0
	for _, r := range m.regs {
		if r.EventID == eventID {
			n++
		}
	}
	ev.SignedUp = n
	return nil
}

func (m *memRepo) ListUpcomingWithin(_ context.Context, within time.Duration) ([]*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var out []*domain.Event
	for _, ev := range m.events {
		if ev.Status != domain.StatusUpcoming {
			continue
		}
		start, err := ev.StartAt()
		if err != nil {
			continue
		}
		if start.After(now) && !start.After(now.Add(within)) {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) RoleOccupancy(_ context.Context, eventID, roleID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.occupancyLocked(eventID, roleID), nil
}

func (m *memRepo) occupancyLocked(eventID, roleID uuid.UUID) int {
	n := 0
	for _, r := range m.regs {
		if r.EventID == eventID && r.RoleID == roleID {
			n++
		}
	}
	for _, g := range m.guests {
		if g.EventID == eventID && g.RoleID == roleID {
			n++
		}
	}
	return n
}

func (m *memRepo) FindRegistration(_ context.Context, eventID, userID, roleID uuid.UUID) (*domain.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.EventID == eventID && r.UserID == userID && r.RoleID == roleID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memRepo) InsertRegistration(_ context.Context, reg *domain.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.regs {
		if r.EventID == reg.EventID && r.UserID == reg.UserID && r.RoleID == reg.RoleID {
			return domain.ErrAlreadyRegistered
		}
	}
	cp := *reg
	m.regs[cp.ID] = &cp
	if ev, ok := m.events[reg.EventID]; ok {
		ev.SignedUp++
	}
	return nil
}

func (m *memRepo) DeleteRegistration(_ context.Context, eventID, userID, roleID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.regs {
		if r.EventID == eventID && r.UserID == userID && r.RoleID == roleID {
			delete(m.regs, id)
			if ev, ok := m.events[eventID]; ok && ev.SignedUp > 0 {
				ev.SignedUp--
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) MoveRegistration(_ context.Context, eventID, userID, fromRoleID, toRoleID uuid.UUID, targetMax int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var src *domain.Registration
	for _, r := range m.regs {
		if r.EventID == eventID && r.UserID == userID && r.RoleID == fromRoleID {
			src = r
			break
		}
	}
	if src == nil {
		return false, nil
	}
	if m.occupancyLocked(eventID, toRoleID) >= targetMax {
		return false, nil
	}
	src.RoleID = toRoleID
	return true, nil
}

func (m *memRepo) InsertGuestRegistration(_ context.Context, g *domain.GuestRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *g
	m.guests[cp.ID] = &cp
	return nil
}

func (m *memRepo) ClaimReminder(_ context.Context, eventID uuid.UUID, class string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return false, m.claimErr
	}
	key := eventID.String() + "|" + class
	if m.reminders[key] {
		return false, nil
	}
	m.reminders[key] = true
	return true, nil
}

func (m *memRepo) DeleteEventCascade(_ context.Context, eventID uuid.UUID) (domain.CascadeResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[eventID]; !ok {
		return domain.CascadeResult{}, domain.ErrEventNotFound
	}
	var res domain.CascadeResult
	for id, r := range m.regs {
		if r.EventID == eventID {
			delete(m.regs, id)
			res.DeletedRegistrations++
		}
	}
	for id, g := range m.guests {
		if g.EventID == eventID {
			delete(m.guests, id)
			res.DeletedGuestRegistrations++
		}
	}
	for _, set := range m.programs {
		delete(set, eventID)
	}
	delete(m.events, eventID)
	return res, nil
}

func (m *memRepo) AddEventToProgram(_ context.Context, programID, eventID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.programs[programID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		m.programs[programID] = set
	}
	set[eventID] = struct{}{}
	return nil
}

func (m *memRepo) RemoveEventFromProgram(_ context.Context, programID, eventID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.programs[programID]; ok {
		delete(set, eventID)
	}
	return nil
}

// countingCache records invalidation calls.
type countingCache struct {
	mu        sync.Mutex
	event     int
	analytics int
}

func (c *countingCache) InvalidateEvent(context.Context, uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.event++
	return nil
}

func (c *countingCache) InvalidateAnalytics(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analytics++
	return nil
}

func (c *countingCache) calls() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.event, c.analytics
}

// noopNotifier satisfies domain.Notifier; tests never assert on dispatch
// because the engine runs it detached.
type noopNotifier struct{}

func (noopNotifier) OnSignedUp(context.Context, domain.Registration) error  { return nil }
func (noopNotifier) OnCancelled(context.Context, domain.Registration) error { return nil }
func (noopNotifier) OnMoved(context.Context, domain.Registration, uuid.UUID) error {
	return nil
}
func (noopNotifier) OnRemoved(context.Context, domain.Registration, uuid.UUID) error {
	return nil
}
func (noopNotifier) OnAssigned(context.Context, domain.Registration, uuid.UUID) error {
	return nil
}
func (noopNotifier) OnReminderDue(context.Context, uuid.UUID, string) error { return nil }

func newTestEngine(repo *memRepo) (*Engine, *countingCache) {
	cache := &countingCache{}
	return NewEngine(
		repo,
		cache,
		lock.NewManager(),
		noopNotifier{},
		NewOrganizerPermissions(),
		audit.New(zerolog.Nop()),
		zerolog.Nop(),
		2*time.Second,
	), cache
}

// upcomingEvent seeds an event starting tomorrow with the given roles.
func upcomingEvent(repo *memRepo, roles ...domain.Role) *domain.Event {
	tomorrow := time.Now().Add(24 * time.Hour)
	ev := &domain.Event{
		ID:        uuid.New(),
		Title:     "community cleanup",
		Date:      tomorrow.Format("2006-01-02"),
		EndDate:   tomorrow.Format("2006-01-02"),
		StartTime: "09:00",
		EndTime:   "17:00",
		Timezone:  "UTC",
		Status:    domain.StatusUpcoming,
		Roles:     roles,
		CreatedBy: uuid.New(),
	}
	repo.addEvent(ev)
	return ev
}

func role(name string, max int) domain.Role {
	return domain.Role{ID: uuid.New(), Name: name, MaxParticipants: max}
}
