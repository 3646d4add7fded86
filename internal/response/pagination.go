package response

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

const maxPageSize = 100

// maxPage keeps (page-1)*limit from overflowing int.
const maxPage = math.MaxInt / maxPageSize

// PageDefaults are used when page or limit is missing or malformed.
type PageDefaults struct {
	Page  int
	Limit int
}

// DefaultPageDefaults is page 1 of 10.
var DefaultPageDefaults = PageDefaults{Page: 1, Limit: 10}

// PageParams is a parsed page request.
type PageParams struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination reads page and limit from query parameters. Parsing is permissive:
// bad values fall back to the defaults, page is clamped to [1, maxPage] and limit to [1, 100].
func ParsePagination(q url.Values, defaults PageDefaults) PageParams {
	page := parseIntOr(q.Get("page"), defaults.Page)
	limit := parseIntOr(q.Get("limit"), defaults.Limit)

	page = min(max(page, 1), maxPage)
	limit = min(max(limit, 1), maxPageSize)

	return PageParams{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

func parseIntOr(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
