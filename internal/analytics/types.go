package analytics

import (
	"time"

	"github.com/instalens/instalens/internal/models"
)

// PostWithEngagement is a post annotated with computed engagement
type PostWithEngagement struct {
	models.Post
	EngagementAbsolute int64   `json:"engagement_absolute"`
	EngagementRate     float64 `json:"engagement_rate"`
}

// MetricSummary summarizes one numeric metric over a post set
type MetricSummary struct {
	Avg    float64 `json:"avg"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// ProfileStats is the per-profile summary over the filtered post set
type ProfileStats struct {
	TotalPosts     int           `json:"total_posts"`
	TotalReels     int           `json:"total_reels"`
	Likes          MetricSummary `json:"likes"`
	Comments       MetricSummary `json:"comments"`
	EngagementRate MetricSummary `json:"engagement_rate"`
	PeriodFrom     *time.Time    `json:"period_from"`
	PeriodTo       *time.Time    `json:"period_to"`
}

// TagAnalytics is a per-hashtag or per-mention rollup
type TagAnalytics struct {
	Tag               string  `json:"tag"`
	UsageCount        int     `json:"usage_count"`
	AvgLikes          float64 `json:"avg_likes"`
	AvgEngagementRate float64 `json:"avg_engagement_rate"`
}

// AnalyticsResponse is the full analytics query result
type AnalyticsResponse struct {
	ProfileID int64                `json:"profile_id"`
	Posts     []PostWithEngagement `json:"posts"`
	Stats     ProfileStats         `json:"stats"`
	Hashtags  []TagAnalytics       `json:"hashtags"`
	Mentions  []TagAnalytics       `json:"mentions"`
}

// EngagementAbsolute computes a post's absolute engagement
func EngagementAbsolute(post *models.Post) int64 {
	return post.LikesCount + post.CommentsCount
}

// EngagementRate computes a post's engagement rate against the
// profile's current follower count. The denominator is clamped to 1 so
// a profile with zero followers never divides by zero.
func EngagementRate(post *models.Post, followersCount int64) float64 {
	followers := followersCount
	if followers < 1 {
		followers = 1
	}
	return float64(EngagementAbsolute(post)) / float64(followers)
}
