package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sifan077/utmlink/internal/app/model"
)

const (
	defaultFilterCapacity = 1_000_000
	filterFalsePositive   = 0.001
	warmPageSize          = 5000
)

// CodeFilter puts a bloom filter in front of LinkRepository.Exists. A miss
// in the filter means the code is definitely free; a hit falls through to
// the store.
type CodeFilter struct {
	LinkRepository

	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeFilter wraps repo with an empty filter sized for capacity codes.
func NewCodeFilter(repo LinkRepository, capacity uint) *CodeFilter {
	if capacity == 0 {
		capacity = defaultFilterCapacity
	}
	return &CodeFilter{
		LinkRepository: repo,
		filter:         bloom.NewWithEstimates(capacity, filterFalsePositive),
	}
}

// Warm loads every stored code into the filter and returns how many were added.
func (f *CodeFilter) Warm(ctx context.Context) (int, error) {
	var (
		after string
		total int
	)
	for {
		codes, err := f.LinkRepository.ListCodes(ctx, after, warmPageSize)
		if err != nil {
			return total, fmt.Errorf("warm code filter: %w", err)
		}
		if len(codes) == 0 {
			return total, nil
		}

		f.mu.Lock()
		for _, code := range codes {
			f.filter.AddString(code)
		}
		f.mu.Unlock()

		total += len(codes)
		after = codes[len(codes)-1]
	}
}

func (f *CodeFilter) mightContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(code)
}

func (f *CodeFilter) add(code string) {
	f.mu.Lock()
	f.filter.AddString(code)
	f.mu.Unlock()
}

func (f *CodeFilter) Exists(ctx context.Context, code string) (bool, error) {
	if !f.mightContain(code) {
		return false, nil
	}
	return f.LinkRepository.Exists(ctx, code)
}

// Insert records the code in the filter whether it was stored or collided.
func (f *CodeFilter) Insert(ctx context.Context, link *model.Link) (bool, error) {
	ok, err := f.LinkRepository.Insert(ctx, link)
	if err != nil {
		return false, err
	}
	f.add(link.Code)
	return ok, nil
}
