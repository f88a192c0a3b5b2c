package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"studytrail/internal/credentials"
	"studytrail/internal/models"
	"studytrail/internal/repository"
	"studytrail/internal/security"
	"studytrail/internal/validation"
)

// Claim statuses
const (
	ClaimCreated = "created"
	ClaimExists  = "exists"
)

// UserStore is the persistence behind username claims
type UserStore interface {
	CreateUser(ctx context.Context, username, tokenID string) (*models.User, error)
	GetUser(ctx context.Context, username string) (*models.User, error)
	UpdateTokenID(ctx context.Context, username, tokenID string) error
}

// Claim is the outcome of a successful claim
type Claim struct {
	Status   string `json:"status"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// ClaimService creates or resumes usernames and issues their write tokens
type ClaimService struct {
	users  UserStore
	filter *WordFilter
	tokens *security.TokenIssuer
	names  *credentials.Generator
	logger *zap.Logger
}

// NewClaimService creates a claim service. A nil filter accepts every valid username.
func NewClaimService(users UserStore, filter *WordFilter, tokens *security.TokenIssuer, logger *zap.Logger) *ClaimService {
	return &ClaimService{users: users, filter: filter, tokens: tokens, names: credentials.NewGenerator(), logger: logger}
}

// Claim validates input and either creates the username or resumes it. Both
// cases issue a fresh token. Invalid or blocked names return a validation.ValidationError.
func (s *ClaimService) Claim(ctx context.Context, input string) (*Claim, error) {
	username := validation.NormalizeUsername(input)
	if err := validation.ValidateUsername(username); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUser(ctx, username)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return s.resume(ctx, username)
	}

	if s.filter != nil {
		blocked, err := s.filter.IsBlocked(ctx, username)
		if err != nil {
			return nil, err
		}
		if blocked {
			s.logger.Info("blocked username refused", zap.String("username", username))
			return nil, validation.ValidationError{Field: "username", Message: "That username is not available. Please choose another."}
		}
	}

	token, tokenID, err := s.tokens.Issue(username)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.CreateUser(ctx, username, tokenID); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return s.resume(ctx, username)
		}
		return nil, fmt.Errorf("failed to claim username: %w", err)
	}

	s.logger.Info("username created", zap.String("username", username))
	return &Claim{Status: ClaimCreated, Username: username, Token: token}, nil
}

func (s *ClaimService) resume(ctx context.Context, username string) (*Claim, error) {
	token, tokenID, err := s.tokens.Issue(username)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateTokenID(ctx, username, tokenID); err != nil {
		return nil, err
	}

	s.logger.Info("username resumed", zap.String("username", username))
	return &Claim{Status: ClaimExists, Username: username, Token: token}, nil
}

// maxSuggestionAttempts bounds how many generated names Suggest tries
const maxSuggestionAttempts = 10

// Suggest returns a generated username that is neither taken nor blocked
func (s *ClaimService) Suggest(ctx context.Context) (string, error) {
	candidates, err := s.names.Candidates(maxSuggestionAttempts)
	if err != nil {
		return "", err
	}

	for _, candidate := range candidates {
		_, err := s.users.GetUser(ctx, candidate)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}

		if s.filter != nil {
			blocked, err := s.filter.IsBlocked(ctx, candidate)
			if err != nil {
				return "", err
			}
			if blocked {
				continue
			}
		}
		return candidate, nil
	}
	return "", ErrNoSuggestion
}

// Authorize checks that token grants writes to username
func (s *ClaimService) Authorize(token, username string) error {
	subject, err := s.tokens.Verify(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	if subject != username {
		return fmt.Errorf("%w: token is for another username", ErrForbidden)
	}
	return nil
}
