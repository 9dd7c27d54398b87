package model

import (
	"time"

	"golang.org/x/time/rate"
)

// BatchListPagination is the envelope returned with the paginated batch list.
type BatchListPagination struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalBatches int64 `json:"totalBatches"`
	Limit        int   `json:"limit"`
	HasNextPage  bool  `json:"hasNextPage"`
	HasPrevPage  bool  `json:"hasPrevPage"`
}

// ResponsePagination is the envelope for a batch's paginated responses.
type ResponsePagination struct {
	CurrentPage    int   `json:"currentPage"`
	TotalPages     int   `json:"totalPages"`
	TotalResponses int64 `json:"totalResponses"`
	Limit          int   `json:"limit"`
	HasNextPage    bool  `json:"hasNextPage"`
	HasPrevPage    bool  `json:"hasPrevPage"`
}

// NewBatchListPagination derives the page booleans from the total count.
func NewBatchListPagination(page, limit int, total int64) BatchListPagination {
	totalPages := pageCount(total, limit)
	return BatchListPagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalBatches: total,
		Limit:        limit,
		HasNextPage:  page < totalPages,
		HasPrevPage:  page > 1,
	}
}

// NewResponsePagination derives the page booleans from the total count.
func NewResponsePagination(page, limit int, total int64) ResponsePagination {
	totalPages := pageCount(total, limit)
	return ResponsePagination{
		CurrentPage:    page,
		TotalPages:     totalPages,
		TotalResponses: total,
		Limit:          limit,
		HasNextPage:    page < totalPages,
		HasPrevPage:    page > 1,
	}
}

func pageCount(total int64, limit int) int {
	if limit <= 0 || total <= 0 {
		return 0
	}
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return int(pages)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	User    *User     `json:"user,omitempty"`
}

type IpLimiter struct {
	Limiter    *rate.Limiter
	LastActive time.Time
}
