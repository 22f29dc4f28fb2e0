package utils

import (
	"net/http"
	"strconv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page window read from ?page=&page_size=
type Page struct {
	Number int
	Size   int
}

// Offset is the number of rows to skip for this page
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PaginatedResponse is the data member of every list endpoint
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalItems int64       `json:"total_items"`
	TotalPages int         `json:"total_pages"`
}

// ParsePage reads the page window, clamping junk to the defaults
func ParsePage(r *http.Request) Page {
	q := r.URL.Query()
	p := Page{
		Number: queryInt(q.Get("page"), 1),
		Size:   queryInt(q.Get("page_size"), DefaultPageSize),
	}
	if p.Number < 1 {
		p.Number = 1
	}
	switch {
	case p.Size < 1:
		p.Size = DefaultPageSize
	case p.Size > MaxPageSize:
		p.Size = MaxPageSize
	}
	return p
}

// Paginate wraps one page of rows with the totals the client needs to walk the rest
func Paginate(data interface{}, p Page, totalItems int64) PaginatedResponse {
	size := int64(p.Size)
	if size < 1 {
		size = DefaultPageSize
	}
	return PaginatedResponse{
		Data:       data,
		Page:       p.Number,
		PageSize:   int(size),
		TotalItems: totalItems,
		TotalPages: int((totalItems + size - 1) / size),
	}
}

func queryInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
