package catalog

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	filterCapacity = 100_000
	filterFPR      = 0.001
)

// Lookup wraps a Repository with a bloom filter of known article ids and
// collapses concurrent lookups of the same id into one repository call.
//
// The filter never yields false negatives, so ids it rejects are unknown
// without touching the database. It must be warmed before use; until then
// every id is passed through.
type Lookup struct {
	repo Repository

	mu     sync.RWMutex
	filter *bloom.BloomFilter
	warm   bool

	group singleflight.Group
}

// NewLookup returns a Lookup over repo.
func NewLookup(repo Repository) *Lookup {
	return &Lookup{
		repo:   repo,
		filter: bloom.NewWithEstimates(filterCapacity, filterFPR),
	}
}

// Warm rebuilds the filter from every article id in the repository.
// Articles written by other processes become visible on the next Warm.
func (l *Lookup) Warm(ctx context.Context) (int, error) {
	articles, err := l.repo.List(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list articles")
	}

	filter := bloom.NewWithEstimates(filterCapacity, filterFPR)
	for _, a := range articles {
		filter.Add(idKey(a.ID))
	}

	l.mu.Lock()
	l.filter = filter
	l.warm = true
	l.mu.Unlock()
	return len(articles), nil
}

// RefreshEvery re-warms the filter each interval until ctx is done.
func (l *Lookup) RefreshEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.Warm(ctx); err != nil && ctx.Err() == nil {
				zctx.From(ctx).Warn("Catalog refresh failed", zap.Error(err))
			}
		}
	}
}

// Remember records id as known, e.g. after an article was created.
func (l *Lookup) Remember(id int64) {
	l.mu.Lock()
	l.filter.Add(idKey(id))
	l.mu.Unlock()
}

// MayExist reports whether id could be a known article.
func (l *Lookup) MayExist(id int64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.warm {
		return true
	}
	return l.filter.Test(idKey(id))
}

// List returns all articles.
func (l *Lookup) List(ctx context.Context) ([]Article, error) {
	return l.repo.List(ctx)
}

// FindByID resolves a single article. Concurrent lookups of the same id
// share one repository read.
func (l *Lookup) FindByID(ctx context.Context, id int64) (*Article, error) {
	if !l.MayExist(id) {
		return nil, ErrNotFound
	}

	// The shared read outlives any single caller: one canceling must not
	// fail the others waiting on it.
	ch := l.group.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		return l.repo.FindByID(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		a := *res.Val.(*Article)
		return &a, nil
	}
}

// FindByIDs resolves articles in one batch. Ids rejected by the filter are
// left out of the result like any other unknown id.
func (l *Lookup) FindByIDs(ctx context.Context, ids []int64) ([]Article, error) {
	candidates := make([]int64, 0, len(ids))
	for _, id := range ids {
		if l.MayExist(id) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return l.repo.FindByIDs(ctx, candidates)
}

// Upsert writes a through to the repository and remembers its id.
func (l *Lookup) Upsert(ctx context.Context, a *Article) error {
	if err := l.repo.Upsert(ctx, a); err != nil {
		return err
	}
	l.Remember(a.ID)
	return nil
}

var _ Repository = (*Lookup)(nil)

func idKey(id int64) []byte {
	return strconv.AppendInt(nil, id, 10)
}
