package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/abdallahabusidu/coach-app-be-sub001/internal/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func buildPaginationMeta(page, limit, total int) models.PaginationMeta {
	return models.PaginationMeta{
		Total:       total,
		Page:        page,
		Limit:       limit,
		HasNext:     page*limit < total,
		HasPrevious: page > 1,
	}
}

// paginatedResponse is the wire envelope every list endpoint returns.
func paginatedResponse(items any, page, limit, total int) fiber.Map {
	meta := buildPaginationMeta(page, limit, total)
	return fiber.Map{
		"items":       items,
		"total":       meta.Total,
		"page":        meta.Page,
		"limit":       meta.Limit,
		"hasNext":     meta.HasNext,
		"hasPrevious": meta.HasPrevious,
	}
}

func parsePositiveInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// parsePageQuery reads page/limit query params with bounds applied.
func parsePageQuery(c *fiber.Ctx) (page int, limit int) {
	page = parsePositiveInt(c.Query("page"), 1)
	limit = parsePositiveInt(c.Query("limit"), defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
