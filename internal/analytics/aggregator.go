// Package analytics computes derived engagement analytics over a
// profile's scraped posts. Everything here is a pure function over an
// immutable snapshot: safe to run concurrently for different profiles
// or different filter specifications against the same profile.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/instalens/instalens/internal/models"
)

// Aggregator computes analytics responses from a profile's post set
type Aggregator struct {
	topTags int
}

// NewAggregator creates an aggregator returning up to topTags ranked
// hashtags and mentions (10 when non-positive)
func NewAggregator(topTags int) *Aggregator {
	if topTags <= 0 {
		topTags = 10
	}
	return &Aggregator{topTags: topTags}
}

// Aggregate runs the full analytics pipeline: type filter, date
// filter, engagement annotation, sort, limit. Stats and tag tables are
// computed over the filtered pre-limit set. The pipeline order is part
// of the contract.
func (a *Aggregator) Aggregate(profile *models.Profile, posts []*models.Post, filters PostFilters, now time.Time) (*AnalyticsResponse, error) {
	filters = filters.withDefaults()
	if err := filters.Validate(); err != nil {
		return nil, err
	}

	// 1. Type filter
	filtered := make([]*models.Post, 0, len(posts))
	for _, post := range posts {
		switch filters.Type {
		case TypePosts:
			if post.IsReel {
				continue
			}
		case TypeReels:
			if !post.IsReel {
				continue
			}
		}
		filtered = append(filtered, post)
	}

	// 2. Date filter, inclusive bounds on posted_at falling back to
	// scraped_at
	if from, to, apply := filters.window(now); apply {
		kept := filtered[:0]
		for _, post := range filtered {
			date := post.EffectiveDate()
			if from != nil && date.Before(*from) {
				continue
			}
			if to != nil && date.After(*to) {
				continue
			}
			kept = append(kept, post)
		}
		filtered = kept
	}

	// 3. Engagement annotation against the profile's current follower
	// count
	annotated := make([]PostWithEngagement, len(filtered))
	for i, post := range filtered {
		annotated[i] = PostWithEngagement{
			Post:               *post,
			EngagementAbsolute: EngagementAbsolute(post),
			EngagementRate:     EngagementRate(post, profile.FollowersCount),
		}
	}

	// 4. Sort, ties broken by id ascending for determinism
	sortPosts(annotated, filters.OrderBy, filters.SortDirection)

	// Stats and tag tables cover the filtered set before the limit
	stats := computeStats(annotated)
	hashtags := extractTags(annotated, '#', a.topTags)
	mentions := extractTags(annotated, '@', a.topTags)

	// 5. Limit
	if len(annotated) > filters.Limit {
		annotated = annotated[:filters.Limit]
	}

	return &AnalyticsResponse{
		ProfileID: profile.ID,
		Posts:     annotated,
		Stats:     stats,
		Hashtags:  hashtags,
		Mentions:  mentions,
	}, nil
}

// sortPosts orders annotated posts by the requested field
func sortPosts(posts []PostWithEngagement, orderBy, direction string) {
	desc := direction == SortDesc
	sort.SliceStable(posts, func(i, j int) bool {
		a, b := &posts[i], &posts[j]
		var less, equal bool
		switch orderBy {
		case OrderByLikes:
			less, equal = a.LikesCount < b.LikesCount, a.LikesCount == b.LikesCount
		case OrderByComments:
			less, equal = a.CommentsCount < b.CommentsCount, a.CommentsCount == b.CommentsCount
		case OrderByEngagement:
			less, equal = a.EngagementAbsolute < b.EngagementAbsolute, a.EngagementAbsolute == b.EngagementAbsolute
		case OrderByViews:
			av, bv := viewCount(&a.Post), viewCount(&b.Post)
			less, equal = av < bv, av == bv
		default: // date
			ad, bd := a.EffectiveDate(), b.EffectiveDate()
			less, equal = ad.Before(bd), ad.Equal(bd)
		}
		if equal {
			return a.ID < b.ID
		}
		if desc {
			return !less
		}
		return less
	})
}

// viewCount reads the video view counter, treating null as zero
func viewCount(post *models.Post) int64 {
	if post.VideoViewCount.Valid {
		return post.VideoViewCount.Int64
	}
	return 0
}

// computeStats summarizes the filtered pre-limit set
func computeStats(posts []PostWithEngagement) ProfileStats {
	stats := ProfileStats{TotalPosts: len(posts)}
	if len(posts) == 0 {
		return stats
	}

	likes := make([]float64, len(posts))
	comments := make([]float64, len(posts))
	rates := make([]float64, len(posts))
	var periodFrom, periodTo time.Time

	for i := range posts {
		post := &posts[i]
		if post.IsReel {
			stats.TotalReels++
		}
		likes[i] = float64(post.LikesCount)
		comments[i] = float64(post.CommentsCount)
		rates[i] = post.EngagementRate

		date := post.EffectiveDate()
		if i == 0 || date.Before(periodFrom) {
			periodFrom = date
		}
		if i == 0 || date.After(periodTo) {
			periodTo = date
		}
	}

	stats.Likes = summarize(likes)
	stats.Comments = summarize(comments)
	stats.EngagementRate = summarize(rates)
	stats.PeriodFrom = &periodFrom
	stats.PeriodTo = &periodTo
	return stats
}

// summarize computes avg/min/max and population standard deviation.
// The deviation is zero for sets of fewer than two elements.
func summarize(values []float64) MetricSummary {
	if len(values) == 0 {
		return MetricSummary{}
	}

	summary := MetricSummary{Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		if v < summary.Min {
			summary.Min = v
		}
		if v > summary.Max {
			summary.Max = v
		}
	}
	summary.Avg = sum / float64(len(values))

	if len(values) > 1 {
		var sq float64
		for _, v := range values {
			d := v - summary.Avg
			sq += d * d
		}
		summary.StdDev = math.Sqrt(sq / float64(len(values)))
	}
	return summary
}
