package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"srcreg/internal/locator"
)

// Options configures an Engine.
type Options struct {
	// Workers bounds parallel normalization. Values <= 1 normalize sequentially.
	Workers int
	// CacheSize is the number of (type, locator) outcomes memoized. 0 disables the memo.
	CacheSize int
}

// DefaultOptions returns the default engine options.
func DefaultOptions() Options {
	return Options{
		Workers:   4,
		CacheSize: 1024,
	}
}

type memoKey struct {
	sourceType string
	locator    string
}

type outcome struct {
	canonical locator.Canonical
	rejection *locator.Rejection
}

// Engine normalizes and classifies records. An Engine may be reused across runs;
// it carries no classification state between calls to Classify.
type Engine struct {
	opts   Options
	memo   *lru.Cache[memoKey, outcome]
	logger *slog.Logger
}

// NewEngine creates an engine.
func NewEngine(opts Options, logger *slog.Logger) (*Engine, error) {
	if opts.Workers < 0 {
		return nil, fmt.Errorf("workers must be >= 0, got %d", opts.Workers)
	}
	if opts.CacheSize < 0 {
		return nil, fmt.Errorf("cache size must be >= 0, got %d", opts.CacheSize)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := &Engine{opts: opts, logger: logger}
	if opts.CacheSize > 0 {
		memo, err := lru.New[memoKey, outcome](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create normalization cache: %w", err)
		}
		e.memo = memo
	}
	return e, nil
}

// Classify normalizes every record and classifies it. The result has one entry per
// input record, in input order. The only error is cancellation of ctx.
func (e *Engine) Classify(ctx context.Context, records []Record) ([]Classified, error) {
	start := time.Now()

	outcomes, err := e.normalizeAll(ctx, records)
	if err != nil {
		return nil, err
	}

	c := newClassifier()
	classified := make([]Classified, len(records))
	for i := range records {
		rec := records[i]
		if rec.Row <= 0 {
			rec.Row = i + 1
		}
		classified[i] = c.classify(rec, outcomes[i])
	}

	e.logger.Debug("Classified records",
		"records", len(records),
		"distinctKeys", len(c.firstSeen),
		"workers", e.opts.Workers,
		"duration", time.Since(start),
	)
	return classified, nil
}

// normalizeAll fills one outcome slot per record. Workers write disjoint index ranges,
// so the slice keeps input order regardless of completion order.
func (e *Engine) normalizeAll(ctx context.Context, records []Record) ([]outcome, error) {
	outcomes := make([]outcome, len(records))

	workers := e.opts.Workers
	if workers <= 1 || len(records) < 2 {
		for i := range records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = e.normalize(records[i])
		}
		return outcomes, nil
	}

	chunk := (len(records) + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < len(records); lo += chunk {
		hi := min(lo+chunk, len(records))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcomes[i] = e.normalize(records[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (e *Engine) normalize(rec Record) outcome {
	if e.memo == nil {
		canonical, rej := locator.Normalize(rec.SourceType, rec.Locator)
		return outcome{canonical: canonical, rejection: rej}
	}

	key := memoKey{sourceType: rec.SourceType, locator: rec.Locator}
	if o, ok := e.memo.Get(key); ok {
		return o
	}
	canonical, rej := locator.Normalize(rec.SourceType, rec.Locator)
	o := outcome{canonical: canonical, rejection: rej}
	e.memo.Add(key, o)
	return o
}

// classifier owns the first-seen index for a single run.
type classifier struct {
	firstSeen map[string]int
}

func newClassifier() *classifier {
	return &classifier{firstSeen: make(map[string]int)}
}

func (c *classifier) classify(rec Record, o outcome) Classified {
	if o.rejection != nil {
		return Classified{
			Record:        rec,
			Status:        StatusInvalid,
			InvalidCode:   o.rejection.Code,
			InvalidReason: o.rejection.Message,
		}
	}

	if first, seen := c.firstSeen[o.canonical.Key]; seen {
		return Classified{
			Record:      rec,
			Canonical:   o.canonical,
			Status:      StatusDuplicate,
			DuplicateOf: first,
		}
	}

	c.firstSeen[o.canonical.Key] = rec.Row
	return Classified{
		Record:    rec,
		Canonical: o.canonical,
		Status:    StatusValid,
	}
}
