package analytics

import (
	"errors"
	"fmt"
	"time"
)

// Order fields
const (
	OrderByLikes      = "likes"
	OrderByComments   = "comments"
	OrderByEngagement = "engagement"
	OrderByDate       = "date"
	OrderByViews      = "views"
)

// Sort directions
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Type filters
const (
	TypeAll   = "all"
	TypePosts = "posts"
	TypeReels = "reels"
)

// Date presets
const (
	PresetAll     = "all"
	PresetWeek    = "week"
	PresetMonth   = "month"
	Preset3Months = "3months"
	PresetCustom  = "custom"
)

// DefaultLimit is the result limit applied when the caller omits one
const DefaultLimit = 500

// ErrInvalidFilter marks a malformed analytics query. Invalid filters
// are rejected before any aggregation runs, never silently clamped.
var ErrInvalidFilter = errors.New("invalid analytics filter")

// PostFilters specifies which posts an analytics query covers and how
// results are ordered
type PostFilters struct {
	OrderBy       string     `json:"order_by"`
	SortDirection string     `json:"sort_direction"`
	Type          string     `json:"type"`
	DatePreset    string     `json:"date_preset"`
	DateFrom      *time.Time `json:"date_from"`
	DateTo        *time.Time `json:"date_to"`
	Limit         int        `json:"limit"`
}

// DefaultFilters returns the filter specification used when a caller
// supplies nothing
func DefaultFilters() PostFilters {
	return PostFilters{
		OrderBy:       OrderByDate,
		SortDirection: SortDesc,
		Type:          TypeAll,
		DatePreset:    PresetAll,
		Limit:         DefaultLimit,
	}
}

// withDefaults fills empty enum fields. The limit is deliberately not
// defaulted here: an explicit non-positive limit must fail validation.
func (f PostFilters) withDefaults() PostFilters {
	if f.OrderBy == "" {
		f.OrderBy = OrderByDate
	}
	if f.SortDirection == "" {
		f.SortDirection = SortDesc
	}
	if f.Type == "" {
		f.Type = TypeAll
	}
	if f.DatePreset == "" {
		f.DatePreset = PresetAll
	}
	return f
}

// Validate checks the filter specification
func (f PostFilters) Validate() error {
	f = f.withDefaults()

	switch f.OrderBy {
	case OrderByLikes, OrderByComments, OrderByEngagement, OrderByDate, OrderByViews:
	default:
		return fmt.Errorf("%w: unknown order_by %q", ErrInvalidFilter, f.OrderBy)
	}
	switch f.SortDirection {
	case SortAsc, SortDesc:
	default:
		return fmt.Errorf("%w: unknown sort_direction %q", ErrInvalidFilter, f.SortDirection)
	}
	switch f.Type {
	case TypeAll, TypePosts, TypeReels:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidFilter, f.Type)
	}
	switch f.DatePreset {
	case PresetAll, PresetWeek, PresetMonth, Preset3Months, PresetCustom:
	default:
		return fmt.Errorf("%w: unknown date_preset %q", ErrInvalidFilter, f.DatePreset)
	}
	if f.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidFilter, f.Limit)
	}
	if f.DatePreset == PresetCustom && f.DateFrom == nil && f.DateTo == nil {
		return fmt.Errorf("%w: custom date_preset requires date_from or date_to", ErrInvalidFilter)
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateFrom.After(*f.DateTo) {
		return fmt.Errorf("%w: date_from is after date_to", ErrInvalidFilter)
	}
	return nil
}

// window resolves the filter's date selection to concrete inclusive
// bounds relative to the query time. A nil bound means unbounded; the
// all preset skips date filtering entirely.
func (f PostFilters) window(now time.Time) (from, to *time.Time, filtered bool) {
	switch f.DatePreset {
	case PresetAll:
		return nil, nil, false
	case PresetWeek:
		start := now.AddDate(0, 0, -7)
		return &start, &now, true
	case PresetMonth:
		start := now.AddDate(0, -1, 0)
		return &start, &now, true
	case Preset3Months:
		start := now.AddDate(0, -3, 0)
		return &start, &now, true
	default: // custom always carries at least one bound past Validate
		return f.DateFrom, f.DateTo, true
	}
}
