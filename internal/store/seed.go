package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/nhle/erp-sync/internal/model"
)

// Fixtures maps a collection path to its documents by id.
type Fixtures map[string]map[string]model.Fields

// SeedFile loads fixtures from a JSON file shaped like
//
//	{"projects": {"p1": {"name": "Villa"}}, "projects/p1/financials": {...}}
func (s *SQLiteStore) SeedFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	var fx Fixtures
	if err := json.Unmarshal(data, &fx); err != nil {
		return fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	return s.Seed(ctx, fx)
}

// Seed writes every fixture document. Collections are written in path
// order so parents land before their subcollections.
func (s *SQLiteStore) Seed(ctx context.Context, fx Fixtures) error {
	collections := make([]string, 0, len(fx))
	for c := range fx {
		collections = append(collections, c)
	}
	sort.Strings(collections)

	for _, c := range collections {
		ids := make([]string, 0, len(fx[c]))
		for id := range fx[c] {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			if err := s.Set(ctx, c+"/"+id, fx[c][id]); err != nil {
				return fmt.Errorf("seeding %s/%s: %w", c, id, err)
			}
		}
	}
	return nil
}
