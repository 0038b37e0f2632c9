package analytics

import (
	"regexp"
	"sort"
	"strings"
)

// Tag tokens are # or @ followed by an alphanumeric/underscore run;
// punctuation ends a token. Grouping is case-insensitive.
var tagPattern = regexp.MustCompile(`[#@][A-Za-z0-9_]+`)

type tagAccumulator struct {
	posts         int
	likesSum      float64
	engagementSum float64
}

// extractTags scans captions for hashtag or mention tokens and returns
// the top ranked rollups. A tag repeated inside one caption counts
// once: usage_count is the number of posts using the tag, and the
// averages are taken over those posts.
func extractTags(posts []PostWithEngagement, marker byte, topN int) []TagAnalytics {
	accumulators := make(map[string]*tagAccumulator)

	for i := range posts {
		post := &posts[i]
		seen := make(map[string]bool)
		for _, token := range tagPattern.FindAllString(post.Caption, -1) {
			if token[0] != marker {
				continue
			}
			tag := strings.ToLower(token[1:])
			if seen[tag] {
				continue
			}
			seen[tag] = true

			acc := accumulators[tag]
			if acc == nil {
				acc = &tagAccumulator{}
				accumulators[tag] = acc
			}
			acc.posts++
			acc.likesSum += float64(post.LikesCount)
			acc.engagementSum += post.EngagementRate
		}
	}

	results := make([]TagAnalytics, 0, len(accumulators))
	for tag, acc := range accumulators {
		results = append(results, TagAnalytics{
			Tag:               tag,
			UsageCount:        acc.posts,
			AvgLikes:          acc.likesSum / float64(acc.posts),
			AvgEngagementRate: acc.engagementSum / float64(acc.posts),
		})
	}

	// Rank by usage, then engagement, then tag name for determinism
	sort.Slice(results, func(i, j int) bool {
		if results[i].UsageCount != results[j].UsageCount {
			return results[i].UsageCount > results[j].UsageCount
		}
		if results[i].AvgEngagementRate != results[j].AvgEngagementRate {
			return results[i].AvgEngagementRate > results[j].AvgEngagementRate
		}
		return results[i].Tag < results[j].Tag
	})

	if len(results) > topN {
		results = results[:topN]
	}
	return results
}
