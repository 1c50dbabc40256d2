package services

import (
	"context"
	"fmt"
	"time"

	"minimarket/internal/models"
	"minimarket/internal/repository"
)

// AuthService handles authentication business logic
type AuthService struct {
	repo *repository.Repository
}

// NewAuthService creates a new AuthService
func NewAuthService(repo *repository.Repository) *AuthService {
	return &AuthService{repo: repo}
}

// ProcessWalletLogin finds or creates a user by wallet address. Each wallet
// must sign a newer message than its last login, so a captured signature
// cannot be replayed.
func (s *AuthService) ProcessWalletLogin(ctx context.Context, walletAddress string, signedAt time.Time) (*models.User, error) {
	user, err := s.repo.FindOrCreateUser(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	ok, err := s.repo.AdvanceLoginTime(ctx, user.ID, signedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	if !ok {
		return nil, ErrLoginReplayed
	}
	user.LastSignedAt = signedAt.Unix()
	return user, nil
}

// GetUser retrieves a user by id
func (s *AuthService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
