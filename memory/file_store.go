package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStore keeps every conversation in a single JSON file keyed by
// conversation key. It rewrites the whole file on each Append.
type FileStore struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) GetRows(ctx context.Context, key string, limit int) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := loadRows(s.path)
	if err != nil {
		return nil, err
	}
	rows := append([]Row(nil), all[key]...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CreatedAt.Before(rows[j].CreatedAt) })
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	return rows, nil
}

// Append stores rows, filling in a uuid ID and CreatedAt where missing.
// Rows stamped in the same call keep their relative order.
func (s *FileStore) Append(ctx context.Context, rows ...Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := loadRows(s.path)
	if err != nil {
		return err
	}
	if all == nil {
		all = make(map[string][]Row)
	}
	base := s.now()
	for i, r := range rows {
		if r.ConversationKey == "" {
			return errors.New("memory: row without conversation key")
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
		}
		all[r.ConversationKey] = append(all[r.ConversationKey], r)
	}
	return saveRows(s.path, all)
}

func loadRows(path string) (map[string][]Row, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var all map[string][]Row
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, fmt.Errorf("memory: decode %s: %w", path, err)
	}
	return all, nil
}

func saveRows(path string, all map[string][]Row) error {
	b, err := json.MarshalIndent(all, "", " ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}
