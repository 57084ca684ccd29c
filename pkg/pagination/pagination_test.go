package pagination

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name     string
		in       Params
		wantPage int
		wantSize int
	}{
		{"defaults", Params{}, 1, DefaultPageSize},
		{"negative page", Params{Page: -3, PageSize: 10}, 1, 10},
		{"oversized", Params{Page: 2, PageSize: 500}, 2, MaxPageSize},
		{"valid", Params{Page: 4, PageSize: 25}, 4, 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalize()
			if got.Page != tc.wantPage || got.PageSize != tc.wantSize {
				t.Fatalf("got page=%d size=%d, want page=%d size=%d", got.Page, got.PageSize, tc.wantPage, tc.wantSize)
			}
		})
	}
}

func TestOffsetAndLimit(t *testing.T) {
	p := Params{Page: 3, PageSize: 20}
	if got := p.Offset(); got != 40 {
		t.Fatalf("expected offset 40, got %d", got)
	}
	if got := p.Limit(); got != 20 {
		t.Fatalf("expected limit 20, got %d", got)
	}
}

func TestNewPage(t *testing.T) {
	page := NewPage([]int{1, 2, 3}, 45, Params{Page: 2, PageSize: 20})
	if page.TotalPages != 3 {
		t.Fatalf("expected 3 total pages, got %d", page.TotalPages)
	}
	if page.Page != 2 || page.PageSize != 20 || page.Total != 45 {
		t.Fatalf("unexpected metadata: %+v", page)
	}

	empty := NewPage[int](nil, 0, Params{})
	if empty.Items == nil {
		t.Fatal("items should serialize as an empty array, not null")
	}
	if empty.TotalPages != 0 {
		t.Fatalf("expected 0 total pages, got %d", empty.TotalPages)
	}
}
