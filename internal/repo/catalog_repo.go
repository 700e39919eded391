package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/domain"
)

// EnsureCategory returns the category with the given name, creating it if needed.
func EnsureCategory(ctx context.Context, db *gorm.DB, name string) (*domain.Category, error) {
	c := domain.Category{Name: strings.TrimSpace(name)}
	if err := db.WithContext(ctx).Where("name = ?", c.Name).FirstOrCreate(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all categories ordered by name.
func ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	var out []domain.Category
	err := db.WithContext(ctx).Order("name ASC").Find(&out).Error
	return out, err
}

// GetCategory fetches a category by id, or ErrNotFound.
func GetCategory(ctx context.Context, db *gorm.DB, id uint) (*domain.Category, error) {
	var c domain.Category
	if err := db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// EnsureService creates the (category, title) service or refreshes its
// required-document list when it already exists.
func EnsureService(ctx context.Context, db *gorm.DB, categoryID uint, title string, docs []string) (*domain.Service, error) {
	var s domain.Service
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("category_id = ? AND title = ?", categoryID, strings.TrimSpace(title)).First(&s).Error
		switch {
		case err == nil:
			s.SetRequiredDocuments(docs)
			return tx.Model(&s).Update("documents", s.Documents).Error
		case errors.Is(err, ErrNotFound):
			s = domain.Service{CategoryID: categoryID, Title: strings.TrimSpace(title)}
			s.SetRequiredDocuments(docs)
			return tx.Omit("Category").Create(&s).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListServicesByCategory returns the services of one category ordered by title.
func ListServicesByCategory(ctx context.Context, db *gorm.DB, categoryID uint) ([]domain.Service, error) {
	var out []domain.Service
	err := db.WithContext(ctx).
		Where("category_id = ?", categoryID).
		Order("title ASC").
		Find(&out).Error
	return out, err
}

// GetService fetches a service by id, or ErrNotFound.
func GetService(ctx context.Context, db *gorm.DB, id uint) (*domain.Service, error) {
	var s domain.Service
	if err := db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
