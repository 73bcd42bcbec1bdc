package cost

import (
	"github.com/samber/lo"

	"github.com/finopshq/mimir-cost-datasource/internal/mimir"
)

// PageSize caps how many series travel in one page.
const PageSize = 1000

// Pages splits a series list into pages of up to PageSize, preserving
// order, and appends one empty terminal page. Concatenating the
// non-terminal pages reproduces the input exactly; the terminal page is
// the end-of-stream marker and is present even for empty input.
func Pages(series []mimir.TimeSeries) [][]mimir.TimeSeries {
	pages := lo.Chunk(series, PageSize)
	return append(pages, []mimir.TimeSeries{})
}
