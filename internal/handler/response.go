package handler

import (
	"strconv"

	"github.com/Baaaki/agora/internal/apperr"
	"github.com/Baaaki/agora/internal/repository"
	"github.com/Baaaki/agora/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PageResponse wraps one page of a listing.
type PageResponse[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

func newPage[T any](items []T, page repository.Page, total int64) PageResponse[T] {
	if items == nil {
		items = []T{}
	}
	return PageResponse[T]{Items: items, Page: page.Page, Limit: page.Limit, Total: total}
}

// fail hands err to the error handler and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		logger.Log.Warn("Request parsing failed",
			zap.String("route", c.FullPath()),
			zap.String("ip", c.ClientIP()),
			zap.Error(err),
		)
		fail(c, apperr.Validation("Invalid request body"))
		return false
	}
	return true
}

func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		fail(c, apperr.Validationf("Invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

// pageFrom reads ?page= and ?limit=, normalized to the repository bounds.
func pageFrom(c *gin.Context) repository.Page {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return repository.Page{Page: page, Limit: limit}.Normalize()
}

func limitFrom(c *gin.Context, def int) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit < 1 {
		return def
	}
	return min(limit, repository.MaxPageSize)
}
