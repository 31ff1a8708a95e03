package report

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/newthinker/cyclewatch/internal/core"
	"github.com/newthinker/cyclewatch/internal/storage/archive"
	"go.uber.org/zap"
)

// Store publishes reports to an archive backend. The engine never reads it.
type Store struct {
	storage archive.Storage
	logger  *zap.Logger
}

// NewStore creates a report store
func NewStore(storage archive.Storage, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{storage: storage, logger: logger}
}

// Save writes the report under its key, replacing a report of the same day
func (s *Store) Save(ctx context.Context, r *Report) (string, error) {
	data, err := r.JSON()
	if err != nil {
		return "", core.WrapError(core.ErrStorageFailed, fmt.Errorf("encoding report: %w", err))
	}

	key := r.Key()
	if err := s.storage.Write(ctx, key, data); err != nil {
		return "", err
	}

	s.logger.Info("report published",
		zap.String("asset", r.Asset),
		zap.String("key", key),
		zap.String("regime", string(r.Regime)))
	return key, nil
}

// Get reads the report of an asset for one day
func (s *Store) Get(ctx context.Context, asset string, day time.Time) (*Report, error) {
	return s.read(ctx, KeyFor(asset, day))
}

// List returns the report dates stored for an asset, oldest first
func (s *Store) List(ctx context.Context, asset string) ([]time.Time, error) {
	prefix := strings.ToLower(asset) + "/"
	keys, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var days []time.Time
	for _, key := range keys {
		name := strings.TrimSuffix(strings.TrimPrefix(key, prefix), ".json")
		day, err := time.Parse(dateLayout, name)
		if err != nil {
			// not a report written by Save
			continue
		}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

// Latest returns the most recent report of an asset
func (s *Store) Latest(ctx context.Context, asset string) (*Report, error) {
	days, err := s.List(ctx, asset)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, core.Errorf(core.ErrNoData, "no reports for %s", asset)
	}
	return s.Get(ctx, asset, days[len(days)-1])
}

func (s *Store) read(ctx context.Context, key string) (*Report, error) {
	data, err := s.storage.Read(ctx, key)
	if err != nil {
		return nil, err
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("decoding %s: %w", key, err))
	}
	return &r, nil
}
