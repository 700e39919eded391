// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for channel posts
// and their hashtag links, including the retention-eviction composite.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-service-desk/internal/domain"
)

// UpsertPost inserts the post keyed by sourceID, or updates title and content
// when the source id was seen before. CreatedAt is kept from the first insert.
func UpsertPost(ctx context.Context, db *gorm.DB, sourceID int64, title, content string, now time.Time) (*domain.Post, error) {
	p := domain.Post{SourceID: sourceID, Title: title, Content: content, CreatedAt: now.UTC()}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "content"}),
		}).
		Create(&p).Error
	if err != nil {
		return nil, err
	}
	// The primary key reported by an upsert that took the UPDATE path is not
	// reliable across drivers, so read the row back.
	var stored domain.Post
	if err := db.WithContext(ctx).Where("source_id = ?", sourceID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// LinkHashtag attaches a hashtag to a post; linking twice is a no-op.
func LinkHashtag(ctx context.Context, db *gorm.DB, postID, hashtagID uint) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit(clause.Associations).
		Create(&domain.PostHashtag{PostID: postID, HashtagID: hashtagID}).Error
}

// CountPosts returns the number of stored posts.
func CountPosts(ctx context.Context, db *gorm.DB) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Post{}).Count(&n).Error
	return n, err
}

// EvictOldestPosts deletes the oldest posts until at most keep remain. Hashtag
// links of the evicted posts are removed before the posts themselves. It
// returns the ids of the evicted posts, oldest first.
func EvictOldestPosts(ctx context.Context, db *gorm.DB, keep int) ([]uint, error) {
	var evicted []uint
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var total int64
		if err := tx.Model(&domain.Post{}).Count(&total).Error; err != nil {
			return err
		}
		surplus := int(total) - keep
		if surplus <= 0 {
			return nil
		}
		if err := tx.Model(&domain.Post{}).
			Order("created_at ASC, id ASC").
			Limit(surplus).
			Pluck("id", &evicted).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN ?", evicted).Delete(&domain.PostHashtag{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", evicted).Delete(&domain.Post{}).Error
	})
	if err != nil {
		return nil, err
	}
	return evicted, nil
}

// GetPost fetches a post by id, or ErrNotFound.
func GetPost(ctx context.Context, db *gorm.DB, id uint) (*domain.Post, error) {
	var p domain.Post
	if err := db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// SearchPosts returns up to limit posts whose title contains keyword
// (case-insensitive), newest first.
func SearchPosts(ctx context.Context, db *gorm.DB, keyword string, limit int) ([]domain.Post, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(keyword))) + "%"
	var out []domain.Post
	err := db.WithContext(ctx).
		Where(`LOWER(title) LIKE ? ESCAPE '\'`, pattern).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListPostsByTag returns up to limit posts carrying the tag, newest first.
func ListPostsByTag(ctx context.Context, db *gorm.DB, tag string, limit int) ([]domain.Post, error) {
	var out []domain.Post
	err := db.WithContext(ctx).
		Joins("JOIN post_hashtags ON post_hashtags.post_id = posts.id").
		Joins("JOIN hashtags ON hashtags.id = post_hashtags.hashtag_id").
		Where("hashtags.name = ?", tag).
		Order("posts.created_at DESC, posts.id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListPostHashtags returns the tag names linked to a post, sorted.
func ListPostHashtags(ctx context.Context, db *gorm.DB, postID uint) ([]string, error) {
	var names []string
	err := db.WithContext(ctx).
		Model(&domain.Hashtag{}).
		Joins("JOIN post_hashtags ON post_hashtags.hashtag_id = hashtags.id").
		Where("post_hashtags.post_id = ?", postID).
		Order("hashtags.name ASC").
		Pluck("hashtags.name", &names).Error
	return names, err
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
