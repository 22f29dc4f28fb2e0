package utils

import (
	"net/http/httptest"
	"testing"
)

func TestParsePage(t *testing.T) {
	tests := []struct {
		query      string
		wantNumber int
		wantSize   int
		wantOffset int
	}{
		{"", 1, DefaultPageSize, 0},
		{"?page=3&page_size=10", 3, 10, 20},
		{"?page=0&page_size=0", 1, DefaultPageSize, 0},
		{"?page=-2&page_size=500", 1, MaxPageSize, 0},
		{"?page=two&page_size=x", 1, DefaultPageSize, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := ParsePage(httptest.NewRequest("GET", "/items"+tt.query, nil))
			if p.Number != tt.wantNumber || p.Size != tt.wantSize || p.Offset() != tt.wantOffset {
				t.Errorf("ParsePage() = %+v offset %d, want %d/%d offset %d",
					p, p.Offset(), tt.wantNumber, tt.wantSize, tt.wantOffset)
			}
		})
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		total     int64
		size      int
		wantPages int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 1},
	}

	for _, tt := range tests {
		resp := Paginate([]int{}, Page{Number: 1, Size: tt.size}, tt.total)
		if resp.TotalPages != tt.wantPages {
			t.Errorf("Paginate(total=%d, size=%d).TotalPages = %d, want %d", tt.total, tt.size, resp.TotalPages, tt.wantPages)
		}
	}
}
