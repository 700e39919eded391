// Package catalog loads the service catalog from a YAML file into the store.
//
// File format:
//
//	categories:
//	  - name: Personal Documents
//	    services:
//	      - title: Certificate
//	        documents: [Passport copy, Application form]
//
// Seeding is idempotent: categories are matched by name and services by
// (category, title), so the file can be applied on every start.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/repo"
)

// File is the YAML document root.
type File struct {
	Categories []Category `yaml:"categories"`
}

// Category is one catalog section.
type Category struct {
	Name     string    `yaml:"name"`
	Services []Service `yaml:"services"`
}

// Service is one requestable service.
type Service struct {
	Title     string   `yaml:"title"`
	Documents []string `yaml:"documents"`
}

// Result counts what Seed touched.
type Result struct {
	Categories int
	Services   int
}

// Parse decodes and validates a catalog document. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("catalog: %w", err)
	}
	for i, c := range f.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("catalog: category #%d has no name", i+1)
		}
		for j, s := range c.Services {
			if strings.TrimSpace(s.Title) == "" {
				return nil, fmt.Errorf("catalog: service #%d in %q has no title", j+1, c.Name)
			}
		}
	}
	return &f, nil
}

// Load reads and parses the catalog at path.
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return Parse(fh)
}

// Seed applies f to the store in a single transaction.
func Seed(ctx context.Context, db *gorm.DB, f *File) (Result, error) {
	var res Result
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range f.Categories {
			cat, err := repo.EnsureCategory(ctx, tx, strings.TrimSpace(c.Name))
			if err != nil {
				return err
			}
			res.Categories++
			for _, s := range c.Services {
				if _, err := repo.EnsureService(ctx, tx, cat.ID, strings.TrimSpace(s.Title), s.Documents); err != nil {
					return err
				}
				res.Services++
			}
		}
		return nil
	})
	return res, err
}
