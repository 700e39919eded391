// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model:
// registration on first contact, last-seen tracking and operator moderation.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-service-desk/internal/domain"
)

// UpsertUser inserts the user on first contact or refreshes the display
// fields and last-seen timestamp on later contacts. The Blocked flag is never
// touched here. It returns the stored row.
func UpsertUser(ctx context.Context, db *gorm.DB, u domain.User, now time.Time) (*domain.User, error) {
	u.LastSeen = now.UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now.UTC()
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "username", "last_seen"}),
		}).
		Omit("Blocked").
		Create(&u).Error
	if err != nil {
		return nil, err
	}
	return GetUser(ctx, db, u.ID)
}

// TouchUser records activity for an existing user.
func TouchUser(ctx context.Context, db *gorm.DB, id int64, now time.Time) error {
	res := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("last_seen", now.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUser fetches a user by id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// SetUserBlocked sets the moderation flag. Returns ErrNotFound for unknown ids.
func SetUserBlocked(ctx context.Context, db *gorm.DB, id int64, blocked bool) error {
	res := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Update("blocked", blocked)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes the user together with their orders, subscriptions and
// settings in one transaction. Dependents are deleted explicitly so the
// cascade does not depend on the driver's foreign-key enforcement.
func DeleteUser(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&domain.Subscription{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.UserSettings{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&domain.Order{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.User{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
