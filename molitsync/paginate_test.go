package molitsync

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestPageCount(t *testing.T) {
	cases := []struct {
		total, pageSize, want int
	}{
		{2500, 1000, 3},
		{1000, 1000, 2}, // exact multiple still probes one page past the end
		{1, 1000, 1},
		{0, 1000, 1},
	}
	for _, tc := range cases {
		if got := pageCount(tc.total, tc.pageSize); got != tc.want {
			t.Errorf("pageCount(%d, %d) = %d, want %d", tc.total, tc.pageSize, got, tc.want)
		}
	}
}

func TestLastPage(t *testing.T) {
	if !lastPage(400, 1000, 1400, 5000) {
		t.Error("short page must end the walk")
	}
	if !lastPage(1000, 1000, 3000, 3000) {
		t.Error("reaching the total must end the walk")
	}
	if lastPage(1000, 1000, 1000, 3000) {
		t.Error("full page below the total must continue")
	}
}

func fakePages(counts map[int]int, total int) (fetchPageFunc, *sync.Map) {
	var fetched sync.Map
	fetch := func(ctx context.Context, pageNo int) ([]rawItem, int, error) {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		fetched.Store(pageNo, true)
		items := make([]rawItem, counts[pageNo])
		for i := range items {
			items[i] = rawItem{"seq": fmt.Sprintf("%d-%d", pageNo, i)}
		}
		return items, total, nil
	}
	return fetch, &fetched
}

func TestCollectPages_GathersAllPages(t *testing.T) {
	fetch, fetched := fakePages(map[int]int{1: 1000, 2: 1000, 3: 500}, 2500)

	items, errs := collectPages(context.Background(), 1000, fetch)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(items) != 2500 {
		t.Fatalf("want 2500 items, got %d", len(items))
	}
	for page := 1; page <= 3; page++ {
		if _, ok := fetched.Load(page); !ok {
			t.Errorf("page %d never fetched", page)
		}
	}
	if _, ok := fetched.Load(4); ok {
		t.Error("page 4 must not be fetched")
	}
}

// The final page of a walk is always short. An earlier full page still in
// flight when the short one lands must finish and keep its items.
func TestCollectPages_ShortPageKeepsInFlightSiblings(t *testing.T) {
	page3Done := make(chan struct{})
	fetch := func(ctx context.Context, pageNo int) ([]rawItem, int, error) {
		switch pageNo {
		case 2:
			// Hold page 2 until the short page 3 has already returned.
			select {
			case <-page3Done:
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
		case 3:
			defer close(page3Done)
		}
		n := 1000
		if pageNo == 3 {
			n = 500
		}
		items := make([]rawItem, n)
		for i := range items {
			items[i] = rawItem{}
		}
		return items, 2500, nil
	}

	items, errs := collectPages(context.Background(), 1000, fetch)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(items) != 2500 {
		t.Fatalf("want 2500 items, got %d", len(items))
	}
}

func TestCollectPages_SingleShortFirstPage(t *testing.T) {
	fetch, fetched := fakePages(map[int]int{1: 120}, 120)

	items, errs := collectPages(context.Background(), 1000, fetch)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(items) != 120 {
		t.Fatalf("want 120 items, got %d", len(items))
	}
	if _, ok := fetched.Load(2); ok {
		t.Error("a short first page must stop the walk")
	}
}

func TestCollectPages_PageFailureIsSkippedNotFatal(t *testing.T) {
	fetch := func(ctx context.Context, pageNo int) ([]rawItem, int, error) {
		if pageNo == 2 {
			return nil, 0, fmt.Errorf("boom")
		}
		items := make([]rawItem, 1000)
		for i := range items {
			items[i] = rawItem{}
		}
		return items, 3000, nil
	}

	items, errs := collectPages(context.Background(), 1000, fetch)
	if len(errs) != 1 {
		t.Fatalf("want 1 page error, got %v", errs)
	}
	// pages 1, 3 and 4 succeed; only page 2 is missing
	if len(items) != 3000 {
		t.Fatalf("want 3000 items, got %d", len(items))
	}
}

func TestCollectPages_FirstPageFailureIsFatal(t *testing.T) {
	fetch := func(ctx context.Context, pageNo int) ([]rawItem, int, error) {
		return nil, 0, fmt.Errorf("boom")
	}
	items, errs := collectPages(context.Background(), 1000, fetch)
	if items != nil || len(errs) != 1 {
		t.Fatalf("want nil items and one error, got %d items %v", len(items), errs)
	}
}
