// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order model.
//
// Error semantics:
//   - CreateOrder returns ErrDuplicate when the tracking code collides with an
//     existing row; callers may regenerate the code and retry.
//   - Lookups by code return ErrNotFound for unknown codes.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/domain"
)

// OrderView is an order joined with the title of its service.
type OrderView struct {
	ID           uint      `json:"id"`
	UserID       int64     `json:"user_id"`
	ServiceID    uint      `json:"service_id"`
	ServiceTitle string    `json:"service_title"`
	Code         string    `json:"code"`
	Docs         *string   `json:"docs,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

const orderViewColumns = "orders.id, orders.user_id, orders.service_id, services.title AS service_title, " +
	"orders.code, orders.docs, orders.status, orders.created_at"

// CreateOrder inserts a new order with status "new". The unique index on code
// is the sole arbiter of uniqueness: a collision yields ErrDuplicate.
func CreateOrder(ctx context.Context, db *gorm.DB, userID int64, serviceID uint, code, docs string) (*domain.Order, error) {
	o := &domain.Order{
		UserID:    userID,
		ServiceID: serviceID,
		Code:      code,
		Docs:      &docs,
		Status:    domain.OrderStatusNew,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Omit("User", "Service").Create(o).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return o, nil
}

// GetOrderByCode fetches an order joined with its service title.
func GetOrderByCode(ctx context.Context, db *gorm.DB, code string) (*OrderView, error) {
	return findOrderView(ctx, db, "orders.code = ?", code)
}

// GetOrderForUser fetches an order by code only if it belongs to userID.
func GetOrderForUser(ctx context.Context, db *gorm.DB, code string, userID int64) (*OrderView, error) {
	return findOrderView(ctx, db, "orders.code = ? AND orders.user_id = ?", code, userID)
}

func findOrderView(ctx context.Context, db *gorm.DB, where string, args ...any) (*OrderView, error) {
	var v OrderView
	res := db.WithContext(ctx).
		Table("orders").
		Select(orderViewColumns).
		Joins("JOIN services ON services.id = orders.service_id").
		Where(where, args...).
		Limit(1).
		Scan(&v)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &v, nil
}

// ListUserOrders returns the user's most recent orders, newest first.
func ListUserOrders(ctx context.Context, db *gorm.DB, userID int64, limit int) ([]OrderView, error) {
	if limit <= 0 {
		limit = 5
	}
	var out []OrderView
	err := db.WithContext(ctx).
		Table("orders").
		Select(orderViewColumns).
		Joins("JOIN services ON services.id = orders.service_id").
		Where("orders.user_id = ?", userID).
		Order("orders.created_at DESC, orders.id DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

// CompleteOrder marks the order completed and scrubs its document text in a
// single transaction. It returns the updated order, or ErrNotFound for
// unknown codes.
func CompleteOrder(ctx context.Context, db *gorm.DB, code string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("code = ?", code).First(&o).Error; err != nil {
			return err
		}
		if err := tx.Model(&domain.Order{}).
			Where("id = ?", o.ID).
			Updates(map[string]any{"status": domain.OrderStatusCompleted, "docs": gorm.Expr("NULL")}).Error; err != nil {
			return err
		}
		o.Status = domain.OrderStatusCompleted
		o.Docs = nil
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
