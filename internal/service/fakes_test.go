package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/eventcert/internal/errs"
	"github.com/and161185/eventcert/internal/model"
	"github.com/and161185/eventcert/internal/repository"
)

// memDB is an in-memory stand-in for the four repositories. CreateOnce serializes
// writers the way the advisory lock does.
type memDB struct {
	mu        sync.Mutex
	writeLock sync.Mutex

	events    map[uuid.UUID]*model.Event
	regs      map[uuid.UUID]*model.RegistrationContext
	regOrder  []uuid.UUID
	templates map[uuid.UUID]*model.Template
	certs     map[uuid.UUID]*model.Certificate // by registration id
	managers  map[uuid.UUID]map[uuid.UUID]bool // society -> user

	persistCalls int
	loadErr      error
	createErr    error
}

var (
	_ repository.TemplateRepository     = (*memDB)(nil)
	_ repository.RegistrationRepository = (*memDB)(nil)
	_ repository.CertificateRepository  = (*memDB)(nil)
	_ repository.AccessRepository       = (*memDB)(nil)
)

func newMemDB() *memDB {
	return &memDB{
		events:    map[uuid.UUID]*model.Event{},
		regs:      map[uuid.UUID]*model.RegistrationContext{},
		templates: map[uuid.UUID]*model.Template{},
		certs:     map[uuid.UUID]*model.Certificate{},
		managers:  map[uuid.UUID]map[uuid.UUID]bool{},
	}
}

// --- templates ---

func (m *memDB) Create(_ context.Context, t *model.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.templates[t.ID]; ok {
		return errs.ErrAlreadyExists
	}
	t.CreatedAt = time.Now()
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *memDB) Get(_ context.Context, id uuid.UUID) (*model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memDB) ListForSociety(_ context.Context, societyID uuid.UUID) ([]model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Template
	for _, t := range m.templates {
		if t.SocietyID == societyID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memDB) Delete(_ context.Context, id, societyID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok || t.SocietyID != societyID {
		return errs.ErrNotFound
	}
	delete(m.templates, id)
	return nil
}

// --- registrations ---

func (m *memDB) GetEvent(_ context.Context, id uuid.UUID) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memDB) ListRegisteredForEvent(_ context.Context, eventID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, id := range m.regOrder {
		rc := m.regs[id]
		if rc.EventID == eventID && rc.RegistrationStatus == model.RegistrationRegistered {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memDB) LoadContext(_ context.Context, id uuid.UUID) (*model.RegistrationContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	rc, ok := m.regs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *rc
	return &cp, nil
}

// update mutates a stored registration in place.
func (m *memDB) update(id uuid.UUID, fn func(rc *model.RegistrationContext)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.regs[id])
}

// --- certificates ---

func (m *memDB) CreateOnce(ctx context.Context, c *model.Certificate, persist func(context.Context) error) (*model.Certificate, bool, error) {
	m.writeLock.Lock()
	defer m.writeLock.Unlock()

	m.mu.Lock()
	if prev, ok := m.certs[c.RegistrationID]; ok {
		cp := *prev
		m.mu.Unlock()
		return &cp, true, nil
	}
	m.persistCalls++
	m.mu.Unlock()

	if err := persist(ctx); err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.certs {
		if other.Token == c.Token {
			return nil, false, errors.New("duplicate token")
		}
	}
	c.IssuedAt = time.Now()
	cp := *c
	m.certs[c.RegistrationID] = &cp
	return c, false, nil
}

func (m *memDB) GetByRegistration(_ context.Context, regID uuid.UUID) (*model.Certificate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.certs[regID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memDB) view(c *model.Certificate) model.CertificateView {
	rc := m.regs[c.RegistrationID]
	return model.CertificateView{
		Certificate:  *c,
		EventID:      rc.EventID,
		EventTitle:   rc.EventTitle,
		EventDate:    rc.EventDate,
		UserID:       rc.UserID,
		StudentName:  rc.StudentName,
		StudentEmail: rc.StudentEmail,
		SocietyName:  rc.SocietyName,
	}
}

func (m *memDB) GetByToken(_ context.Context, tok string) (*model.CertificateView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.certs {
		if c.Token == tok {
			v := m.view(c)
			return &v, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *memDB) ListForEvent(_ context.Context, eventID uuid.UUID) ([]model.CertificateView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CertificateView
	for _, c := range m.certs {
		if m.regs[c.RegistrationID].EventID == eventID {
			out = append(out, m.view(c))
		}
	}
	return out, nil
}

func (m *memDB) ListForUser(_ context.Context, userID uuid.UUID) ([]model.CertificateView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.CertificateView
	for _, c := range m.certs {
		if m.regs[c.RegistrationID].UserID == userID {
			out = append(out, m.view(c))
		}
	}
	return out, nil
}

func (m *memDB) revoke(tok string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.certs {
		if c.Token == tok {
			c.Status = model.StatusRevoked
		}
	}
}

// --- access ---

func (m *memDB) CanManageSociety(_ context.Context, actor model.Actor, societyID uuid.UUID) (bool, error) {
	if actor.Role == model.RoleSuperAdmin {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.managers[societyID][actor.UserID], nil
}

// memStore is an in-memory storage.Store.
type memStore struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	puts   map[string]int
	putErr error
}

func newMemStore() *memStore {
	return &memStore{blobs: map[string][]byte{}, puts: map[string]int{}}
}

func (s *memStore) Put(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.blobs[key] = append([]byte(nil), data...)
	s.puts[key]++
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *memStore) countPrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.blobs {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

// fakeRenderer "prints" the HTML verbatim behind a PDF header.
type fakeRenderer struct {
	mu    sync.Mutex
	calls int
	last  string
	fail  func(html string) error
}

func (r *fakeRenderer) Render(_ context.Context, html string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = html
	if r.fail != nil {
		if err := r.fail(html); err != nil {
			return nil, err
		}
	}
	return []byte("%PDF-1.7\n" + html), nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.IssuedEvent
	err    error
	// hang makes Issued wait for its context, like a producer stuck on an unreachable broker.
	hang bool
}

func (p *fakePublisher) Issued(ctx context.Context, ev model.IssuedEvent) error {
	if p.hang {
		<-ctx.Done()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	if p.hang {
		return ctx.Err()
	}
	return p.err
}

func (p *fakePublisher) Close() {}
