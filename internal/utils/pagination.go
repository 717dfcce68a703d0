package utils

import (
	"strconv" // String conversion

	"github.com/gin-gonic/gin" // Gin web framework
)

// Pagination limits
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page reads page and page_size query params, falling back to defaults on invalid input
func Page(c *gin.Context) (page, pageSize int) {
	page = 1                   // Default page number
	pageSize = DefaultPageSize // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	// Check and set page size within limits
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= MaxPageSize {
			pageSize = v
		}
	}
	return page, pageSize
}

// Offset converts a page into a row offset
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}

// TotalPages computes the number of pages for total rows
func TotalPages(total int64, pageSize int) int {
	return (int(total) + pageSize - 1) / pageSize
}
