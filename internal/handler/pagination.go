package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// MaxPageSize caps the limit query parameter.
const MaxPageSize = 100

// ListMeta describes a bounded list.
type ListMeta struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

// ListResponse defines the structure for a bounded list of any type.
type ListResponse[T any] struct {
	Data []T      `json:"data"`
	Meta ListMeta `json:"meta"`
}

// NewListResponse creates a new ListResponse. A nil slice is sent as [].
func NewListResponse[T any](data []T, limit int) ListResponse[T] {
	if data == nil {
		data = []T{}
	}
	return ListResponse[T]{
		Data: data,
		Meta: ListMeta{Count: len(data), Limit: limit},
	}
}

// limitQuery reads the limit query parameter. Zero lets the service apply
// its page size.
func limitQuery(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		return 0
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return limit
}
