package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-assistant/internal/domain"
	"github.com/spec-kit/ticket-assistant/internal/events"
	"github.com/spec-kit/ticket-assistant/internal/repository"
)

// memStore is an in-memory stand-in for every repository the services use.
type memStore struct {
	mu       sync.Mutex
	seq      int
	users    map[string]*domain.User
	tickets  map[string]*domain.Ticket
	comments []domain.TicketComment
	requests map[string]*domain.ModeratorRequest

	countErr    error
	listErr     error
	countCalls  int
	statUpdates int
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*domain.User{},
		tickets:  map[string]*domain.Ticket{},
		requests: map[string]*domain.ModeratorRequest{},
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s%d", prefix, m.seq)
}

func (m *memStore) addUser(u domain.User) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = m.nextID("u")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Date(2024, 1, 1, 0, 0, m.seq, 0, time.UTC)
	}
	m.users[u.ID] = &u
	return &u
}

func (m *memStore) addTicket(t domain.Ticket) *domain.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = m.nextID("t")
	}
	if t.Status == "" {
		t.Status = domain.TicketStatusTodo
	}
	m.tickets[t.ID] = &t
	return &t
}

func (m *memStore) user(id string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[id]
}

func (m *memStore) ticket(id string) domain.Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.tickets[id]
}

// users

type memUsers struct{ *memStore }

var _ repository.UserRepository = memUsers{}

func (r memUsers) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return fmt.Errorf("duplicate username")
		}
	}
	user.ID = r.nextID("u")
	user.CreatedAt = time.Date(2024, 1, 1, 0, 0, r.seq, 0, time.UTC)
	user.UpdatedAt = user.CreatedAt
	if user.AverageResolutionTimeHours == 0 {
		user.AverageResolutionTimeHours = domain.DefaultAverageResolutionHours
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r memUsers) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.Username = user.Username
	existing.Email = user.Email
	existing.PasswordHash = user.PasswordHash
	existing.Role = user.Role
	existing.Skills = user.Skills
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memUsers) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if u, err := r.GetByEmail(ctx, identifier); err == nil {
		return u, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == identifier {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memUsers) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users), nil
}

func (r memUsers) ListByRoles(_ context.Context, roles ...domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.User
	for _, u := range r.users {
		for _, role := range roles {
			if u.Role == role {
				out = append(out, *u)
				break
			}
		}
	}
	sortUsers(out)
	return out, nil
}

func (r memUsers) ListAll(context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		out = append(out, *u)
	}
	sortUsers(out)
	return out, nil
}

func (r memUsers) UpdateStats(_ context.Context, id string, total int, avg float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.TotalTicketsResolved = total
	u.AverageResolutionTimeHours = avg
	r.statUpdates++
	return nil
}

func (r memUsers) TouchLastAssigned(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.LastAssignedAt = &at
	return nil
}

func (r memUsers) UpdatePresence(_ context.Context, id string, presence domain.Presence, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Presence = presence
	u.LastSeen = &at
	return nil
}

func sortUsers(users []domain.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
}

// tickets

type memTickets struct{ *memStore }

var _ repository.TicketRepository = memTickets{}

func (r memTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = r.nextID("t")
	ticket.CreatedAt = time.Now().UTC()
	ticket.UpdatedAt = ticket.CreatedAt
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

func (r memTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

func (r memTickets) TransitionStatus(_ context.Context, id string, from, to domain.TicketStatus, completedAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	t.CompletedAt = completedAt
	return true, nil
}

func (r memTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (r memTickets) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.tickets {
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if len(filter.Statuses) > 0 && t.Status != filter.Statuses[0] {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTickets) Assign(_ context.Context, ticketID, assigneeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[ticketID]
	if !ok {
		return pgx.ErrNoRows
	}
	t.AssignedTo = &assigneeID
	return nil
}

func (r memTickets) CountActiveByAssignee(_ context.Context, assigneeID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countCalls++
	if r.countErr != nil {
		return 0, r.countErr
	}
	n := 0
	for _, t := range r.tickets {
		if t.IsAssignedTo(assigneeID) && t.Status != domain.TicketStatusCompleted {
			n++
		}
	}
	return n, nil
}

func (r memTickets) CountByStatus(_ context.Context, createdBy *string) (domain.TicketCounts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var counts domain.TicketCounts
	for _, t := range r.tickets {
		if createdBy != nil && t.CreatedBy != *createdBy {
			continue
		}
		counts.Add(t.Status, 1)
	}
	return counts, nil
}

// comments

type memComments struct{ *memStore }

var _ repository.CommentRepository = memComments{}

func (r memComments) Create(_ context.Context, comment *domain.TicketComment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = r.nextID("c")
	comment.CreatedAt = time.Now().UTC()
	r.comments = append(r.comments, *comment)
	return nil
}

func (r memComments) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketComment
	for _, c := range r.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r memComments) CountByTicket(ctx context.Context, ticketID string) (int, error) {
	list, err := r.ListByTicket(ctx, ticketID)
	return len(list), err
}

// moderator requests

type memRequests struct{ *memStore }

var _ repository.ModeratorRequestRepository = memRequests{}

func (r memRequests) Create(_ context.Context, req *domain.ModeratorRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req.ID = r.nextID("r")
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if req.Status == "" {
		req.Status = domain.ModeratorRequestPending
	}
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r memRequests) GetByID(_ context.Context, id string) (*domain.ModeratorRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *req
	return &cp, nil
}

func (r memRequests) latest(applicantID string, status *domain.ModeratorRequestStatus) (*domain.ModeratorRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *domain.ModeratorRequest
	for _, req := range r.requests {
		if req.ApplicantID != applicantID || (status != nil && req.Status != *status) {
			continue
		}
		if best == nil || req.CreatedAt.After(best.CreatedAt) {
			best = req
		}
	}
	if best == nil {
		return nil, pgx.ErrNoRows
	}
	cp := *best
	return &cp, nil
}

func (r memRequests) LatestByApplicant(_ context.Context, applicantID string) (*domain.ModeratorRequest, error) {
	return r.latest(applicantID, nil)
}

func (r memRequests) LatestByApplicantAndStatus(_ context.Context, applicantID string, status domain.ModeratorRequestStatus) (*domain.ModeratorRequest, error) {
	return r.latest(applicantID, &status)
}

func (r memRequests) ListByStatus(_ context.Context, status domain.ModeratorRequestStatus) ([]domain.ModeratorRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ModeratorRequest
	for _, req := range r.requests {
		if req.Status == status {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (r memRequests) Decide(_ context.Context, id string, status domain.ModeratorRequestStatus, reviewerID string, rejectedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.Status != domain.ModeratorRequestPending {
		return pgx.ErrNoRows
	}
	req.Status = status
	req.ReviewedBy = &reviewerID
	req.RejectedAt = rejectedAt
	return nil
}

// events

type recordingDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) ofType(t events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, e := range d.published {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

// outbound

type sentMail struct {
	To, Subject, Body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: text})
	return nil
}

func (m *recordingMailer) to(addr string) []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMail
	for _, s := range m.sent {
		if s.To == addr {
			out = append(out, s)
		}
	}
	return out
}

type recordingPoster struct {
	mu    sync.Mutex
	texts []string
}

func (p *recordingPoster) Post(_ context.Context, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, text)
	return nil
}
