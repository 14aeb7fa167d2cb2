package engine

import (
	"errors"
	"testing"
	"testing/quick"
)

func TestTotalPages(t *testing.T) {
	tests := []struct {
		count, size, want int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{25, 10, 3},
		{25, 1, 25},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.count, tt.size); got != tt.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.count, tt.size, got, tt.want)
		}
	}
}

func TestRecomputeResetsPageOnChange(t *testing.T) {
	p := NewPaginator(10)
	p.Recompute(25, 10)
	p.GoToPage(3)

	// Same inputs: plain recompute keeps the page
	if got := p.Recompute(25, 10); got.PageNo != 3 || got.Total != 3 {
		t.Fatalf("unexpected state after no-op recompute: %+v", got)
	}
	// Count change resets
	if got := p.Recompute(12, 10); got.PageNo != 1 || got.Total != 2 {
		t.Fatalf("count change: %+v", got)
	}
	p.GoToPage(2)
	// Page size change resets
	if got := p.Recompute(12, 5); got.PageNo != 1 || got.Total != 3 || got.PageSize != 5 {
		t.Fatalf("size change: %+v", got)
	}
}

func TestSetPageSize(t *testing.T) {
	p := NewPaginator(0)
	if got := p.State().PageSize; got != DefaultPageSize {
		t.Fatalf("default page size = %d", got)
	}
	p.Recompute(30, 10)
	p.GoToPage(2)

	got, err := p.SetPageSize(4)
	if err != nil {
		t.Fatal(err)
	}
	if got.PageNo != 1 || got.Total != 8 {
		t.Fatalf("unexpected state: %+v", got)
	}
	if _, err := p.SetPageSize(0); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
	if got := p.State().PageSize; got != 4 {
		t.Fatalf("rejected size must not apply, got %d", got)
	}
}

func TestGoToPageClamps(t *testing.T) {
	p := NewPaginator(10)
	p.Recompute(25, 10)

	tests := []struct{ requested, want int }{
		{1, 1},
		{2, 2},
		{3, 3},
		{4, 3},
		{100, 3},
		{0, 1},
		{-5, 1},
	}
	for _, tt := range tests {
		if got := p.GoToPage(tt.requested); got != tt.want {
			t.Errorf("GoToPage(%d) = %d, want %d", tt.requested, got, tt.want)
		}
		if p.State().Total != 3 {
			t.Fatalf("GoToPage must not touch total")
		}
	}

	empty := NewPaginator(10)
	empty.Recompute(0, 10)
	if got := empty.GoToPage(2); got != 1 {
		t.Errorf("empty result should pin page 1, got %d", got)
	}
}

func TestWindowLastPage(t *testing.T) {
	items := make([]int, 25)
	for i := range items {
		items[i] = i
	}
	start, end := WindowFor(3, 10)
	if start != 20 || end != 30 {
		t.Fatalf("WindowFor(3, 10) = [%d, %d)", start, end)
	}
	page := Window(items, start, end)
	if len(page) != 5 || page[0] != 20 || page[4] != 24 {
		t.Fatalf("unexpected last page: %v", page)
	}
	if got := Window(items, 40, 50); len(got) != 0 {
		t.Fatalf("out of range window should be empty, got %v", got)
	}
}

// TestPropertyTotalPages verifies total == ceil(c/p) and total == 0 iff c == 0.
func TestPropertyTotalPages(t *testing.T) {
	f := func(c uint16, p uint8) bool {
		count, size := int(c), int(p)+1
		total := TotalPages(count, size)
		if (total == 0) != (count == 0) {
			return false
		}
		return total*size >= count && (total-1)*size < count || count == 0
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 1000}); err != nil {
		t.Error(err)
	}
}

// TestPropertyWindowsPartition verifies that concatenating every page window
// reproduces the collection with no duplicates or omissions.
func TestPropertyWindowsPartition(t *testing.T) {
	f := func(c uint16, p uint8) bool {
		count, size := int(c%2000), int(p)+1
		items := make([]int, count)
		for i := range items {
			items[i] = i
		}

		var joined []int
		for page := 1; page <= TotalPages(count, size); page++ {
			start, end := WindowFor(page, size)
			joined = append(joined, Window(items, start, end)...)
		}

		if len(joined) != count {
			return false
		}
		for i, v := range joined {
			if v != i {
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}
