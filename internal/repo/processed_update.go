// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides helpers for the ProcessedUpdate model
// used to drop webhook redeliveries of already-handled updates.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-service-desk/internal/domain"
)

// MarkUpdate records (source, updateID) as processed until now+ttl. It
// returns false when an unexpired record already exists, meaning the caller
// should skip the update.
func MarkUpdate(ctx context.Context, db *gorm.DB, source string, updateID int64, ttl time.Duration, now time.Time) (bool, error) {
	now = now.UTC()
	fresh := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// An expired marker no longer counts; clear it so the insert can succeed.
		if err := tx.Where("source = ? AND update_id = ? AND expires_at <= ?", source, updateID, now).
			Delete(&domain.ProcessedUpdate{}).Error; err != nil {
			return err
		}
		rec := &domain.ProcessedUpdate{
			ID:        uuid.NewString(),
			Source:    source,
			UpdateID:  updateID,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		fresh = true
		return nil
	})
	return fresh, err
}

// PurgeExpiredUpdates deletes markers whose TTL elapsed and returns how many
// rows were removed.
func PurgeExpiredUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}

// UnmarkUpdate forgets (source, updateID) so a redelivery is handled again.
// Callers use it when handling failed after MarkUpdate accepted the update.
func UnmarkUpdate(ctx context.Context, db *gorm.DB, source string, updateID int64) error {
	return db.WithContext(ctx).
		Where("source = ? AND update_id = ?", source, updateID).
		Delete(&domain.ProcessedUpdate{}).Error
}
