package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"studytrail/internal/models"
	"studytrail/internal/remote"
	"studytrail/internal/repository"
)

var errDisk = errors.New("disk unavailable")

// memoryKV is an in-memory KeyValueStore
type memoryKV struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	putErr  error
	deletes int
}

func newMemoryKV() *memoryKV {
	return &memoryKV{data: make(map[string]string)}
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (m *memoryKV) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.data[key] = value
	return nil
}

func (m *memoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	delete(m.data, key)
	return nil
}

func (m *memoryKV) value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// fakeRemote is an in-memory RemoteStore and Claimer
type fakeRemote struct {
	mu        sync.Mutex
	records   map[string]*models.CurriculumProgress
	fetchErr  error
	pushErr   error
	claimErr  error
	claimed   map[string]bool
	fetches   int
	pushes    int
	lastToken string
	pushed    chan struct{}

	// fetchDelay holds FetchProgress open to widen concurrent windows
	fetchDelay time.Duration
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		records: make(map[string]*models.CurriculumProgress),
		claimed: make(map[string]bool),
		pushed:  make(chan struct{}, 16),
	}
}

func (f *fakeRemote) FetchProgress(_ context.Context, username string) (*models.CurriculumProgress, error) {
	if f.fetchDelay > 0 {
		time.Sleep(f.fetchDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	p, ok := f.records[username]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return p.Clone(), nil
}

func (f *fakeRemote) PushProgress(_ context.Context, identity models.Identity, p *models.CurriculumProgress) error {
	f.mu.Lock()
	defer func() {
		f.mu.Unlock()
		f.pushed <- struct{}{}
	}()
	f.pushes++
	f.lastToken = identity.AuthToken
	if f.pushErr != nil {
		return f.pushErr
	}
	f.records[identity.Username] = p.Clone()
	return nil
}

func (f *fakeRemote) Claim(_ context.Context, username string) (*remote.ClaimResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	status := remote.StatusCreated
	if f.claimed[username] {
		status = remote.StatusExists
	}
	f.claimed[username] = true
	return &remote.ClaimResponse{Status: status, Username: username, Token: "token-" + username}, nil
}

func (f *fakeRemote) counts() (fetches, pushes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches, f.pushes
}

func (f *fakeRemote) record(username string) *models.CurriculumProgress {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[username].Clone()
}

// staticIdentity is an IdentitySource with a fixed identity
type staticIdentity struct {
	mu       sync.Mutex
	identity models.Identity
}

func (s *staticIdentity) Current() models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *staticIdentity) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = models.Identity{}
	return nil
}

func day(d, hour int) time.Time {
	return time.Date(2026, 3, d, hour, 0, 0, 0, time.UTC)
}

func quizzes(ids ...string) []models.Quiz {
	out := make([]models.Quiz, len(ids))
	for i, id := range ids {
		out[i] = models.Quiz{ID: id}
	}
	return out
}

// testCatalog has inactive content at every level so completion math can be
// checked against the active subset
func testCatalog() *models.Catalog {
	return &models.Catalog{Lessons: []models.Lesson{
		{ID: "basics", Active: true, Topics: []models.Topic{
			{ID: "variables", Active: true, Quizzes: quizzes("q1", "q2", "q3", "q4"), Essay: models.Essay{MinCharacters: 10}},
			{ID: "loops", Active: true, Quizzes: quizzes("q1"), Essay: models.Essay{MinCharacters: 5}},
			{ID: "drafts", Active: false, Quizzes: quizzes("q1")},
		}},
		{ID: "extras", Active: true, Topics: []models.Topic{
			{ID: "empty", Active: true},
		}},
		{ID: "later", Active: false, Topics: []models.Topic{
			{ID: "future", Active: true, Quizzes: quizzes("q1")},
		}},
	}}
}
