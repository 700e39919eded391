package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-service-desk/internal/domain"
)

// UpsertHashtag returns the hashtag with the given name, creating it lazily.
func UpsertHashtag(ctx context.Context, db *gorm.DB, name string) (*domain.Hashtag, error) {
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(&domain.Hashtag{Name: name}).Error
	if err != nil {
		return nil, err
	}
	return GetHashtagByName(ctx, db, name)
}

// GetHashtagByName fetches a hashtag, or ErrNotFound.
func GetHashtagByName(ctx context.Context, db *gorm.DB, name string) (*domain.Hashtag, error) {
	var h domain.Hashtag
	if err := db.WithContext(ctx).Where("name = ?", name).First(&h).Error; err != nil {
		return nil, err
	}
	return &h, nil
}

// ListHashtags returns every known hashtag ordered by name.
func ListHashtags(ctx context.Context, db *gorm.DB) ([]domain.Hashtag, error) {
	var out []domain.Hashtag
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}
