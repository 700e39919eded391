package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/gateway"
	"github.com/tbourn/go-service-desk/internal/repo"
	"github.com/tbourn/go-service-desk/internal/session"
)

// UserService registers users, tracks activity and applies moderation.
type UserService struct {
	DB       *gorm.DB
	Sessions *session.Store
	Now      func() time.Time
}

// Register creates the user on first contact and refreshes display fields
// and last-seen on every later contact.
func (s *UserService) Register(ctx context.Context, from gateway.Sender) (*domain.User, error) {
	return repo.UpsertUser(ctx, s.DB, domain.User{
		ID:        from.ID,
		FirstName: from.FirstName,
		LastName:  from.LastName,
		Username:  from.Username,
	}, s.now())
}

// Block prevents the user from using the desk and drops their session.
func (s *UserService) Block(ctx context.Context, id int64) error {
	if err := mapUserErr(repo.SetUserBlocked(ctx, s.DB, id, true)); err != nil {
		return err
	}
	s.dropSession(id)
	return nil
}

// Unblock restores access.
func (s *UserService) Unblock(ctx context.Context, id int64) error {
	return mapUserErr(repo.SetUserBlocked(ctx, s.DB, id, false))
}

// Delete removes the user with their orders, subscriptions and settings.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	if err := mapUserErr(repo.DeleteUser(ctx, s.DB, id)); err != nil {
		return err
	}
	s.dropSession(id)
	return nil
}

// Stats summarizes the desk; active users are those seen in the last 24h.
func (s *UserService) Stats(ctx context.Context) (repo.DeskStats, error) {
	return repo.LoadStats(ctx, s.DB, s.now().Add(-24*time.Hour))
}

func (s *UserService) dropSession(id int64) {
	if s.Sessions == nil {
		return
	}
	unlock := s.Sessions.Lock(id)
	s.Sessions.Delete(id)
	unlock()
}

func (s *UserService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func mapUserErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}
