package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/mail"
	"github.com/cosmiccode/portal/internal/repository"
	apperrors "github.com/cosmiccode/portal/pkg/util/errorutil"
)

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
	seq   int
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: make(map[string]*domain.User)} }

func (f *fakeUsers) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	user.ID = fmt.Sprintf("user-%d", f.seq)
	user.CreatedAt, user.UpdatedAt = testNow, testNow
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email != nil && strings.EqualFold(*u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeProjects struct {
	projects []domain.Project
}

func (f *fakeProjects) Create(context.Context, *domain.Project) error { return nil }

func (f *fakeProjects) GetByID(_ context.Context, id string) (*domain.Project, error) {
	for _, p := range f.projects {
		if p.ID == id {
			cp := p
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeProjects) List(_ context.Context, scope repository.Scope) ([]domain.Project, error) {
	out := []domain.Project{}
	for _, p := range f.projects {
		if scope.All() || p.ClientID == scope.ClientID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeMessages struct {
	mu       sync.Mutex
	projects *fakeProjects
	rows     map[string]domain.Message
	creates  int
	seq      int
	listErr  error
}

func newFakeMessages(projects *fakeProjects, initial ...domain.Message) *fakeMessages {
	f := &fakeMessages{projects: projects, rows: make(map[string]domain.Message)}
	for _, m := range initial {
		f.rows[m.ID] = m
	}
	return f
}

func (f *fakeMessages) Create(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	f.seq++
	msg.ID = fmt.Sprintf("msg-%d", f.seq)
	msg.CreatedAt = testNow.Add(time.Duration(f.seq) * time.Minute)
	msg.UpdatedAt = msg.CreatedAt
	f.rows[msg.ID] = *msg
	return nil
}

func (f *fakeMessages) sorted(keep func(domain.Message) bool) []domain.Message {
	out := []domain.Message{}
	for _, m := range f.rows {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (f *fakeMessages) ListByProject(_ context.Context, projectID string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(m domain.Message) bool { return m.ProjectID == projectID }), nil
}

func (f *fakeMessages) List(ctx context.Context, scope repository.Scope) ([]domain.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	visible := map[string]bool{}
	projects, _ := f.projects.List(ctx, scope)
	for _, p := range projects {
		visible[p.ID] = true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(m domain.Message) bool { return visible[m.ProjectID] }), nil
}

func (f *fakeMessages) MarkRead(_ context.Context, projectID, viewerID string, ids []string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.Message
	for id, m := range f.rows {
		if m.ProjectID != projectID || m.SenderID == viewerID || m.Read || (ids != nil && !want[id]) {
			continue
		}
		m.Read = true
		m.UpdatedAt = m.UpdatedAt.Add(time.Second)
		f.rows[id] = m
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMessages) get(id string) domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

type fakeInvoices struct {
	invoices []domain.Invoice
	asOf     time.Time
}

func (f *fakeInvoices) List(_ context.Context, scope repository.Scope) ([]domain.Invoice, error) {
	out := []domain.Invoice{}
	for _, inv := range f.invoices {
		if scope.All() || inv.ClientID == scope.ClientID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeInvoices) MarkOverdue(_ context.Context, asOf time.Time) (int64, error) {
	f.asOf = asOf
	var n int64
	for i, inv := range f.invoices {
		if inv.Status == domain.InvoiceStatusPending && inv.DueDate.Before(asOf) {
			f.invoices[i].Status = domain.InvoiceStatusOverdue
			n++
		}
	}
	return n, nil
}

type fakeDocuments struct {
	docs []domain.Document
}

func (f *fakeDocuments) Create(_ context.Context, doc *domain.Document) error {
	doc.ID = fmt.Sprintf("doc-%d", len(f.docs)+1)
	f.docs = append(f.docs, *doc)
	return nil
}

func (f *fakeDocuments) List(context.Context, repository.Scope) ([]domain.Document, error) {
	return append([]domain.Document{}, f.docs...), nil
}

type fakeTickets struct {
	tickets []domain.SupportTicket
}

func (f *fakeTickets) Create(_ context.Context, t *domain.SupportTicket) error {
	t.ID = fmt.Sprintf("ticket-%d", len(f.tickets)+1)
	f.tickets = append(f.tickets, *t)
	return nil
}

func (f *fakeTickets) List(_ context.Context, scope repository.Scope) ([]domain.SupportTicket, error) {
	out := []domain.SupportTicket{}
	for _, t := range f.tickets {
		if scope.All() || t.ClientID == scope.ClientID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeSender struct {
	sent []mail.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg mail.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

type fakeStore struct {
	keys []string
	data []string
	err  error
}

func (f *fakeStore) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(r)
	f.keys = append(f.keys, key)
	f.data = append(f.data, string(b))
	return "/files/" + key, nil
}

func clientUser(id string) *domain.User {
	return &domain.User{ID: id, Role: domain.UserRoleClient}
}

func adminUser() *domain.User {
	return &domain.User{ID: "admin", Role: domain.UserRoleAdmin}
}

func testProjects() *fakeProjects {
	return &fakeProjects{projects: []domain.Project{
		{ID: "p1", ClientID: "alice", Name: "Storefront", Status: domain.ProjectStatusDevelopment},
		{ID: "p2", ClientID: "alice", Name: "Dashboard", Status: domain.ProjectStatusDesign},
		{ID: "p3", ClientID: "bob", Name: "Blog", Status: domain.ProjectStatusDiscovery},
	}}
}

func codeOf(err error) string {
	if de := apperrors.ToDomainError(err); de != nil {
		return de.Code
	}
	return ""
}
