package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-service-desk/internal/domain"
)

// GetSettings returns the stored settings for userID, or def (with UserID set)
// when the user never changed anything.
func GetSettings(ctx context.Context, db *gorm.DB, userID int64, def domain.UserSettings) (domain.UserSettings, error) {
	var s domain.UserSettings
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		def.UserID = userID
		return def, nil
	}
	if err != nil {
		return domain.UserSettings{}, err
	}
	return s, nil
}

// SetPostLimit stores the user's post limit, creating the row from def if needed.
func SetPostLimit(ctx context.Context, db *gorm.DB, userID int64, limit int, def domain.UserSettings) error {
	row := def
	row.UserID = userID
	row.PostLimit = limit
	return upsertSettings(ctx, db, row, "post_limit")
}

// SetNotifications stores the notifications flag, creating the row from def if needed.
func SetNotifications(ctx context.Context, db *gorm.DB, userID int64, enabled bool, def domain.UserSettings) error {
	row := def
	row.UserID = userID
	row.NotificationsEnabled = enabled
	return upsertSettings(ctx, db, row, "notifications_enabled")
}

// upsertSettings inserts row or updates only column on conflict. Columns are
// selected explicitly so a false boolean is not replaced by the column default.
func upsertSettings(ctx context.Context, db *gorm.DB, row domain.UserSettings, column string) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{column}),
		}).
		Select("UserID", "PostLimit", "NotificationsEnabled").
		Create(&row).Error
}
