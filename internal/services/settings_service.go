package services

import (
	"context"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/repo"
)

// SettingsService reads and validates per-user preferences.
type SettingsService struct {
	DB *gorm.DB
	// Defaults apply to users who never changed a setting.
	Defaults domain.UserSettings
	// MaxPostLimit is the inclusive upper bound for PostLimit (lower bound is 1).
	MaxPostLimit int
}

// Get returns the user's settings or the defaults.
func (s *SettingsService) Get(ctx context.Context, userID int64) (domain.UserSettings, error) {
	return repo.GetSettings(ctx, s.DB, userID, s.Defaults)
}

// PostLimit returns the number of posts to list for the user.
func (s *SettingsService) PostLimit(ctx context.Context, userID int64) (int, error) {
	st, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return st.PostLimit, nil
}

// SetPostLimit parses raw and stores it. Non-numeric input yields
// ErrNotANumber and out-of-range values ErrLimitOutOfRange; nothing is
// stored in either case.
func (s *SettingsService) SetPostLimit(ctx context.Context, userID int64, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrNotANumber
	}
	if n < 1 || n > s.MaxPostLimit {
		return 0, ErrLimitOutOfRange
	}
	if err := repo.SetPostLimit(ctx, s.DB, userID, n, s.Defaults); err != nil {
		return 0, err
	}
	return n, nil
}

// SetNotifications switches fan-out notifications for the user.
func (s *SettingsService) SetNotifications(ctx context.Context, userID int64, enabled bool) (domain.UserSettings, error) {
	if err := repo.SetNotifications(ctx, s.DB, userID, enabled, s.Defaults); err != nil {
		return domain.UserSettings{}, err
	}
	return s.Get(ctx, userID)
}
