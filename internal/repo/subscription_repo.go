// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the user↔hashtag subscription queries
// used by the subscription registry and the fan-out engine.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-service-desk/internal/domain"
)

// ToggleSubscription removes the subscription if it exists and creates it
// otherwise. It reports whether the user is subscribed afterwards.
func ToggleSubscription(ctx context.Context, db *gorm.DB, userID int64, hashtagID uint) (bool, error) {
	subscribed := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND hashtag_id = ?", userID, hashtagID).Delete(&domain.Subscription{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		subscribed = true
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			Omit(clause.Associations).
			Create(&domain.Subscription{UserID: userID, HashtagID: hashtagID}).Error
	})
	return subscribed, err
}

// IsSubscribed reports whether the user follows the hashtag.
func IsSubscribed(ctx context.Context, db *gorm.DB, userID int64, hashtagID uint) (bool, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("user_id = ? AND hashtag_id = ?", userID, hashtagID).
		Count(&n).Error
	return n > 0, err
}

// SubscribedHashtagIDs returns the set of hashtag ids the user follows.
func SubscribedHashtagIDs(ctx context.Context, db *gorm.DB, userID int64) (map[uint]struct{}, error) {
	var ids []uint
	if err := db.WithContext(ctx).Model(&domain.Subscription{}).
		Where("user_id = ?", userID).
		Pluck("hashtag_id", &ids).Error; err != nil {
		return nil, err
	}
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// ListNotifiableSubscribers returns the distinct users subscribed to any of the
// hashtags whose notifications are enabled. Users without a settings row use
// the default (enabled).
func ListNotifiableSubscribers(ctx context.Context, db *gorm.DB, hashtagIDs []uint) ([]int64, error) {
	if len(hashtagIDs) == 0 {
		return nil, nil
	}
	var ids []int64
	err := db.WithContext(ctx).
		Table("subscriptions").
		Distinct("subscriptions.user_id").
		Joins("LEFT JOIN user_settings ON user_settings.user_id = subscriptions.user_id").
		Where("subscriptions.hashtag_id IN ?", hashtagIDs).
		Where("COALESCE(user_settings.notifications_enabled, ?) = ?", true, true).
		Order("subscriptions.user_id ASC").
		Pluck("subscriptions.user_id", &ids).Error
	return ids, err
}
