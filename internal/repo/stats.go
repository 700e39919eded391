// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries backing the
// operator statistics endpoint.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/domain"
)

// DeskStats summarizes the store for operators.
type DeskStats struct {
	Users           int64 `json:"users"`
	BlockedUsers    int64 `json:"blocked_users"`
	ActiveUsers     int64 `json:"active_users"`
	OrdersNew       int64 `json:"orders_new"`
	OrdersCompleted int64 `json:"orders_completed"`
	Posts           int64 `json:"posts"`
	Hashtags        int64 `json:"hashtags"`
	Subscriptions   int64 `json:"subscriptions"`
}

// LoadStats counts users, orders by status and content rows. ActiveUsers
// counts users seen at or after since.
func LoadStats(ctx context.Context, db *gorm.DB, since time.Time) (DeskStats, error) {
	var s DeskStats
	q := db.WithContext(ctx)
	counts := []struct {
		dst   *int64
		model any
		where string
		args  []any
	}{
		{&s.Users, &domain.User{}, "", nil},
		{&s.BlockedUsers, &domain.User{}, "blocked = ?", []any{true}},
		{&s.ActiveUsers, &domain.User{}, "last_seen >= ?", []any{since.UTC()}},
		{&s.OrdersNew, &domain.Order{}, "status = ?", []any{domain.OrderStatusNew}},
		{&s.OrdersCompleted, &domain.Order{}, "status = ?", []any{domain.OrderStatusCompleted}},
		{&s.Posts, &domain.Post{}, "", nil},
		{&s.Hashtags, &domain.Hashtag{}, "", nil},
		{&s.Subscriptions, &domain.Subscription{}, "", nil},
	}
	for _, c := range counts {
		tx := q.Model(c.model)
		if c.where != "" {
			tx = tx.Where(c.where, c.args...)
		}
		if err := tx.Count(c.dst).Error; err != nil {
			return DeskStats{}, err
		}
	}
	return s, nil
}
