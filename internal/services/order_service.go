package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/repo"
)

// recentOrders is how many orders "My orders" shows.
const recentOrders = 5

// OrderService serves order lookups for users and operators.
type OrderService struct {
	DB *gorm.DB
}

// Track returns the user's order with the given code, or ErrOrderNotFound.
func (s *OrderService) Track(ctx context.Context, userID int64, code string) (*repo.OrderView, error) {
	v, err := repo.GetOrderForUser(ctx, s.DB, strings.TrimSpace(code), userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return v, err
}

// Get returns any order by code, or ErrOrderNotFound.
func (s *OrderService) Get(ctx context.Context, code string) (*repo.OrderView, error) {
	v, err := repo.GetOrderByCode(ctx, s.DB, strings.TrimSpace(code))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return v, err
}

// Recent returns the user's latest orders, newest first.
func (s *OrderService) Recent(ctx context.Context, userID int64) ([]repo.OrderView, error) {
	return repo.ListUserOrders(ctx, s.DB, userID, recentOrders)
}
