package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/instalens/instalens/internal/analytics"
)

// profileAnalytics handles GET /api/v1/profiles/:id/analytics
func (r *Router) profileAnalytics(c *gin.Context) {
	profileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	filters := analytics.PostFilters{
		OrderBy:       c.DefaultQuery("order_by", analytics.OrderByDate),
		SortDirection: c.DefaultQuery("sort_direction", analytics.SortDesc),
		Type:          c.DefaultQuery("type", analytics.TypeAll),
		DatePreset:    c.DefaultQuery("date_preset", analytics.PresetAll),
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(analytics.DefaultLimit)))
	if err != nil {
		badRequest(c, "invalid limit")
		return
	}
	filters.Limit = limit

	if raw := c.Query("date_from"); raw != "" {
		from, _, err := parseDate(raw)
		if err != nil {
			badRequest(c, "invalid date_from")
			return
		}
		filters.DateFrom = &from
	}
	if raw := c.Query("date_to"); raw != "" {
		to, dateOnly, err := parseDate(raw)
		if err != nil {
			badRequest(c, "invalid date_to")
			return
		}
		if dateOnly {
			// A bare date as the upper bound covers the whole day
			to = to.AddDate(0, 0, 1).Add(-time.Second)
		}
		filters.DateTo = &to
	}

	response, err := r.engine.Analytics(c.Request.Context(), profileID, filters)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// parseDate accepts RFC3339 timestamps or bare dates. The boolean
// reports whether only a date was given.
func parseDate(raw string) (time.Time, bool, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), false, nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return ts.UTC(), true, nil
}
