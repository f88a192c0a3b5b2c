package progress

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"go.uber.org/zap"

	"studytrail/internal/models"
	"studytrail/internal/remote"
	"studytrail/internal/repository"
	"studytrail/internal/validation"
)

// ErrNoIdentityService is returned by Claim when no remote store is configured
var ErrNoIdentityService = errors.New("no identity service configured")

const (
	msgServiceUnreachable = "The identity service could not be reached. Your progress is saved on this device."
	msgNoService          = "No identity service is configured. Your progress is saved on this device."
)

// Claimer performs the create-or-resume handshake with the identity service
type Claimer interface {
	Claim(ctx context.Context, username string) (*remote.ClaimResponse, error)
}

// ClaimKind classifies the outcome of a claim
type ClaimKind int

const (
	ClaimError ClaimKind = iota
	ClaimCreated
	ClaimExists
)

func (k ClaimKind) String() string {
	switch k {
	case ClaimCreated:
		return "created"
	case ClaimExists:
		return "exists"
	default:
		return "error"
	}
}

// ClaimResult is the classified outcome of a claim. Message is set for
// ClaimError and is suitable for showing to the learner.
type ClaimResult struct {
	Kind     ClaimKind
	Identity models.Identity
	Message  string
	Err      error
}

// IdentityManager holds the claimed identity and persists it under IdentityKey
type IdentityManager struct {
	kv      KeyValueStore
	claimer Claimer
	logger  *zap.Logger

	mu      sync.RWMutex
	current models.Identity
}

// NewIdentityManager creates an identity manager. A nil claimer means the
// session is local-only.
func NewIdentityManager(kv KeyValueStore, claimer Claimer, logger *zap.Logger) *IdentityManager {
	return &IdentityManager{kv: kv, claimer: claimer, logger: logger}
}

// Load restores the persisted identity, if any. A malformed entry is dropped.
func (m *IdentityManager) Load(ctx context.Context) models.Identity {
	raw, err := m.kv.Get(ctx, IdentityKey)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			m.logger.Warn("failed to read identity", zap.Error(err))
		}
		return models.Identity{}
	}

	var identity models.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil || validation.ValidateUsername(identity.Username) != nil {
		m.logger.Warn("stored identity is malformed, discarding it")
		if err := m.kv.Delete(ctx, IdentityKey); err != nil {
			m.logger.Warn("failed to delete identity", zap.Error(err))
		}
		return models.Identity{}
	}

	m.mu.Lock()
	m.current = identity
	m.mu.Unlock()
	return identity
}

// Current returns the identity held by this session; the zero value means none
func (m *IdentityManager) Current() models.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Claim validates and normalizes input, then creates or resumes it with the
// identity service in one round trip. Only a successful claim changes the
// held identity.
func (m *IdentityManager) Claim(ctx context.Context, input string) ClaimResult {
	username := validation.NormalizeUsername(input)
	if err := validation.ValidateUsername(username); err != nil {
		return ClaimResult{Kind: ClaimError, Message: validation.UserMessage(err), Err: err}
	}
	if m.claimer == nil {
		return ClaimResult{Kind: ClaimError, Message: msgNoService, Err: ErrNoIdentityService}
	}

	resp, err := m.claimer.Claim(ctx, username)
	if err != nil {
		m.logger.Warn("claim failed", zap.String("username", username), zap.Error(err))
		message := remote.UserMessage(err)
		if message == "" {
			message = msgServiceUnreachable
		}
		return ClaimResult{Kind: ClaimError, Message: message, Err: err}
	}

	kind := ClaimCreated
	if resp.Status == remote.StatusExists {
		kind = ClaimExists
	}
	identity := models.Identity{Username: username, AuthToken: resp.Token}

	m.mu.Lock()
	m.current = identity
	m.mu.Unlock()

	if err := m.persist(ctx, identity); err != nil {
		m.logger.Warn("failed to persist identity", zap.Error(err))
	}

	m.logger.Info("identity claimed", zap.String("username", username), zap.Stringer("kind", kind))
	return ClaimResult{Kind: kind, Identity: identity}
}

// Clear forgets the identity, returning the session to local-only mode
func (m *IdentityManager) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.current = models.Identity{}
	m.mu.Unlock()
	return m.kv.Delete(ctx, IdentityKey)
}

func (m *IdentityManager) persist(ctx context.Context, identity models.Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	return m.kv.Put(ctx, IdentityKey, string(data))
}
