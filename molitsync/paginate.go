package molitsync

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

const (
	defaultPageSize   = 1000
	innerPageParallel = 5
)

// fetchPageFunc loads one page and reports the upstream total count.
type fetchPageFunc func(ctx context.Context, pageNo int) ([]rawItem, int, error)

// pageCount mirrors the upstream page arithmetic: an exact multiple still
// yields one extra page, which comes back empty and is harmless.
func pageCount(total, pageSize int) int {
	if total <= 0 {
		return 1
	}
	return total/pageSize + 1
}

// lastPage reports whether a sequential page walk is finished after receiving
// a page: either the page was short, or the running count reached the total.
func lastPage(pageLen, pageSize, fetched, total int) bool {
	if pageLen < pageSize {
		return true
	}
	return fetched >= total
}

// collectPages fetches page 1 to learn the total, then gathers the remaining
// pages under a bounded semaphore. A short page stops later pages from being
// scheduled; pages already in flight finish normally and keep their items.
// Per-page failures are recorded and skipped, never fatal. Returned items
// carry no cross-page order guarantee beyond page-slot position.
func collectPages(ctx context.Context, pageSize int, fetch fetchPageFunc) ([]rawItem, []string) {
	first, total, err := fetch(ctx, 1)
	if err != nil {
		return nil, []string{fmt.Sprintf("page 1: %v", err)}
	}

	items := make([]rawItem, 0, total)
	items = append(items, first...)
	if len(first) < pageSize || total <= pageSize {
		return items, nil
	}

	totalPages := pageCount(total, pageSize)
	pageItems := make([][]rawItem, totalPages+1)
	pageErrs := make([]string, totalPages+1)

	// lastWanted is the lowest short page seen so far; nothing past it gets
	// scheduled. The final page is always short, so every multi-page walk
	// ends through this path.
	var mu sync.Mutex
	lastWanted := totalPages

	sem := semaphore.NewWeighted(innerPageParallel)
	var wg sync.WaitGroup
	for page := 2; page <= totalPages; page++ {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		mu.Lock()
		limit := lastWanted
		mu.Unlock()
		if page > limit {
			sem.Release(1)
			break
		}
		wg.Add(1)
		go func(pageNo int) {
			defer wg.Done()
			defer sem.Release(1)
			rows, _, err := fetch(ctx, pageNo)
			if err != nil {
				pageErrs[pageNo] = fmt.Sprintf("page %d: %v", pageNo, err)
				return
			}
			pageItems[pageNo] = rows
			if len(rows) < pageSize {
				mu.Lock()
				if pageNo < lastWanted {
					lastWanted = pageNo
				}
				mu.Unlock()
			}
		}(page)
	}
	wg.Wait()

	var errs []string
	for page := 2; page <= totalPages; page++ {
		items = append(items, pageItems[page]...)
		if pageErrs[page] != "" {
			errs = append(errs, pageErrs[page])
		}
	}
	return items, errs
}
