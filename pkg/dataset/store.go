package dataset

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"smart-support-bot/internal/pkg/logger"
	"smart-support-bot/pkg/metrics"
)

const logModule = "DATASET"

// Store owns the active dataset snapshot. Readers never block on a load:
// the snapshot pointer is swapped only after a load fully succeeds.
type Store struct {
	logger       logger.ILogger
	now          func() time.Time
	sheets       *SheetsClient
	fetchTimeout time.Duration

	cfgMu  sync.RWMutex
	source Source

	loadMu  sync.Mutex
	current atomic.Pointer[Snapshot]
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithSheetsClient(c *SheetsClient) Option {
	return func(s *Store) { s.sheets = c }
}

func WithFetchTimeout(d time.Duration) Option {
	return func(s *Store) { s.fetchTimeout = d }
}

func NewStore(log logger.ILogger, opts ...Option) *Store {
	s := &Store{
		logger:       log,
		now:          time.Now,
		fetchTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sheets == nil {
		s.sheets = NewSheetsClient("", "", s.fetchTimeout)
	}
	return s
}

// Configure sets the source used by the next Load. No I/O.
func (s *Store) Configure(src Source) {
	s.cfgMu.Lock()
	s.source = src
	s.cfgMu.Unlock()
}

// Source returns the configured source descriptor.
func (s *Store) Source() Source {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.source
}

// Load fetches the configured source, cleans it and atomically replaces the
// current snapshot. On error the previous snapshot stays in place.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	src := s.Source()
	start := s.now()

	t, synthetic, err := s.fetch(ctx, src)
	if err != nil {
		metrics.ObserveDatasetLoad("error", 0)
		s.logger.Error(logModule, "Dataset load failed, keeping previous snapshot", map[string]interface{}{
			"source":       src.String(),
			"error":        err.Error(),
			"has_previous": s.current.Load() != nil,
		})
		return nil, err
	}

	snap, dropped := normalize(t, src, s.now())
	snap.Synthetic = synthetic
	s.current.Store(snap)

	result := "ok"
	if synthetic {
		result = "synthetic"
	}
	metrics.ObserveDatasetLoad(result, len(snap.Records))

	if dropped > 0 {
		s.logger.Info(logModule, "Dropped empty rows", map[string]interface{}{"dropped": dropped})
	}
	s.logger.Info(logModule, "Dataset loaded", map[string]interface{}{
		"source":       src.String(),
		"synthetic":    synthetic,
		"rows":         len(snap.Records),
		"columns":      snap.Columns.TotalColumns,
		"column_names": snap.Columns.ColumnNames,
		"text_columns": snap.Columns.TextColumns,
		"elapsed_ms":   s.now().Sub(start).Milliseconds(),
	})

	return snap, nil
}

func (s *Store) fetch(ctx context.Context, src Source) (table, bool, error) {
	switch src.Kind {
	case SourceRemote:
		if src.SheetID == "" {
			s.logger.Warn(logModule, "No sheet id configured, using synthetic dataset", nil)
			return syntheticTable(), true, nil
		}
		ctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
		t, err := s.sheets.fetch(ctx, src.SheetID, src.SheetName)
		if err != nil {
			return table{}, false, &LoadError{Source: src, Op: "fetch sheet", Err: err}
		}
		return t, false, nil

	case SourceLocal:
		if src.FilePath == "" {
			s.logger.Warn(logModule, "No file path configured, using synthetic dataset", nil)
			return syntheticTable(), true, nil
		}
		t, err := readLocal(src.FilePath)
		if err != nil {
			return table{}, false, &LoadError{Source: src, Op: "read file", Err: err}
		}
		return t, false, nil

	default:
		s.logger.Warn(logModule, "Unknown data source, using synthetic dataset", map[string]interface{}{
			"kind": string(src.Kind),
		})
		return syntheticTable(), true, nil
	}
}

// CurrentSnapshot returns the last successfully loaded snapshot or nil.
func (s *Store) CurrentSnapshot() *Snapshot {
	return s.current.Load()
}

// Sample returns copies of the first n records.
func (s *Store) Sample(n int) []Record {
	snap := s.current.Load()
	if snap == nil || n <= 0 {
		return []Record{}
	}
	if n > len(snap.Records) {
		n = len(snap.Records)
	}
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		out[i] = snap.Records[i].clone()
	}
	return out
}

// Info summarizes the current snapshot.
func (s *Store) Info() Info {
	return infoFor(s.current.Load())
}
