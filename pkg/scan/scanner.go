package scan

import (
	"context"

	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/pkg/metrics"
)

// Fetcher is the remote ranged-fetch call the scanner pages through.
type Fetcher interface {
	Get(ctx context.Context, q Query) (*Page, error)
}

// Scanner walks a block range page by page, following the cursor returned by
// each response until the range is exhausted. It holds no state between
// calls and never retries.
type Scanner struct {
	source Fetcher
	chain  string
	logger *zap.Logger
}

// NewScanner creates a scanner for the given source. chain labels metrics
// and log lines.
func NewScanner(source Fetcher, chain string, logger *zap.Logger) (*Scanner, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		source: source,
		chain:  chain,
		logger: logger.Named("scanner"),
	}, nil
}

// Each fetches r one page at a time and hands every page to fn in cursor
// order. A fetch error, a cursor that does not advance, or an error from fn
// stops the walk and is returned as is.
func (s *Scanner) Each(ctx context.Context, r BlockRange, q Query, fn func(*Page) error) error {
	cursor := r.From
	for cursor < r.To {
		page, err := s.source.Get(ctx, q.WithRange(cursor, r.To))
		if err != nil {
			return err
		}
		if page == nil {
			return &CursorError{Range: r, Cursor: cursor, NilPage: true}
		}
		metrics.PagesFetched.WithLabelValues(s.chain).Inc()

		if page.NextCursor <= cursor {
			return &CursorError{Range: r, Cursor: cursor, NextCursor: page.NextCursor}
		}

		s.logger.Debug("page fetched",
			zap.Stringer("range", r),
			zap.Uint64("cursor", cursor),
			zap.Uint64("next_cursor", page.NextCursor),
			zap.Int("records", len(page.Records)),
			zap.Int("blocks", len(page.Blocks)),
		)

		if err := fn(page); err != nil {
			return err
		}
		cursor = page.NextCursor
	}
	return nil
}

// Scan collects every page of r. On failure no pages are returned.
func (s *Scanner) Scan(ctx context.Context, r BlockRange, q Query) ([]*Page, error) {
	var pages []*Page
	err := s.Each(ctx, r, q, func(p *Page) error {
		pages = append(pages, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

// CreatedContracts scans r for contract creations and returns the
// discoveries in page order.
func (s *Scanner) CreatedContracts(ctx context.Context, r BlockRange) ([]Discovery, error) {
	var result []Discovery
	err := s.Each(ctx, r, CreationQuery(), func(p *Page) error {
		found := Extract(p)
		if skipped := len(p.Records) - len(found); skipped > 0 {
			metrics.RecordsSkipped.WithLabelValues(s.chain).Add(float64(skipped))
		}
		result = append(result, found...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BlockTimestamps scans r with the block-listing query and returns a lookup
// from block number to timestamp. Rows missing either field are ignored.
// The map grows with the rows returned, not with the width of r.
func (s *Scanner) BlockTimestamps(ctx context.Context, r BlockRange) (map[uint64]uint64, error) {
	times := make(map[uint64]uint64)
	err := s.Each(ctx, r, BlockListingQuery(), func(p *Page) error {
		for _, b := range p.Blocks {
			if b.Number == nil || b.Timestamp == nil {
				continue
			}
			times[*b.Number] = *b.Timestamp
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return times, nil
}
