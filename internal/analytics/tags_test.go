package analytics

import (
	"database/sql"
	"testing"

	"github.com/instalens/instalens/internal/models"
)

func captionPost(id, likes int64, caption string) *models.Post {
	return &models.Post{
		ID:            id,
		ProfileID:     1,
		InstagramID:   caption,
		Caption:       caption,
		LikesCount:    likes,
		CommentsCount: 0,
		PostedAt:      sql.NullTime{Time: testNow, Valid: true},
		ScrapedAt:     testNow,
	}
}

func TestHashtagExtraction(t *testing.T) {
	posts := []*models.Post{
		captionPost(1, 100, "launch day #Golang #backend @devteam"),
		captionPost(2, 50, "more #golang tips, thanks @DevTeam!"),
		captionPost(3, 10, "no tags here"),
	}

	resp := mustAggregate(t, testProfile(1000), posts, DefaultFilters())

	if len(resp.Hashtags) != 2 {
		t.Fatalf("len(hashtags) = %d, want 2", len(resp.Hashtags))
	}

	// Case-insensitive grouping: #Golang and #golang merge
	top := resp.Hashtags[0]
	if top.Tag != "golang" {
		t.Errorf("top hashtag = %q, want golang", top.Tag)
	}
	if top.UsageCount != 2 {
		t.Errorf("usage_count = %d, want 2", top.UsageCount)
	}
	if top.AvgLikes != 75 {
		t.Errorf("avg_likes = %v, want 75", top.AvgLikes)
	}

	if len(resp.Mentions) != 1 || resp.Mentions[0].Tag != "devteam" {
		t.Errorf("mentions = %+v, want single devteam", resp.Mentions)
	}
	if resp.Mentions[0].UsageCount != 2 {
		t.Errorf("mention usage_count = %d, want 2", resp.Mentions[0].UsageCount)
	}
}

func TestTagPunctuationEndsToken(t *testing.T) {
	posts := []*models.Post{
		captionPost(1, 10, "big news: #launch! and #launch, again #under_score9"),
	}

	resp := mustAggregate(t, testProfile(1000), posts, DefaultFilters())

	tags := make(map[string]int)
	for _, h := range resp.Hashtags {
		tags[h.Tag] = h.UsageCount
	}
	if _, ok := tags["launch"]; !ok {
		t.Errorf("expected tag launch, got %v", tags)
	}
	if _, ok := tags["under_score9"]; !ok {
		t.Errorf("expected tag under_score9, got %v", tags)
	}
	// Repeated tag inside one caption counts once
	if tags["launch"] != 1 {
		t.Errorf("launch usage = %d, want 1 per post", tags["launch"])
	}
}

func TestTagRanking(t *testing.T) {
	// beta: 2 posts with low engagement; alpha: 2 posts with high
	// engagement; gamma: 1 post. Ranked by usage, ties by engagement.
	posts := []*models.Post{
		captionPost(1, 500, "#alpha"),
		captionPost(2, 400, "#alpha #gamma"),
		captionPost(3, 10, "#beta"),
		captionPost(4, 20, "#beta"),
	}

	resp := mustAggregate(t, testProfile(1000), posts, DefaultFilters())

	if len(resp.Hashtags) != 3 {
		t.Fatalf("len(hashtags) = %d, want 3", len(resp.Hashtags))
	}
	if resp.Hashtags[0].Tag != "alpha" || resp.Hashtags[1].Tag != "beta" {
		t.Errorf("ranking = [%s %s %s], want [alpha beta gamma]",
			resp.Hashtags[0].Tag, resp.Hashtags[1].Tag, resp.Hashtags[2].Tag)
	}
}

func TestTagTopN(t *testing.T) {
	var posts []*models.Post
	captions := []string{
		"#a", "#b", "#c", "#d", "#e", "#f", "#g", "#h", "#i", "#j", "#k", "#l",
	}
	for i, caption := range captions {
		posts = append(posts, captionPost(int64(i+1), 10, caption))
	}

	resp, err := NewAggregator(10).Aggregate(testProfile(1000), posts, DefaultFilters(), testNow)
	if err != nil {
		t.Fatalf("Aggregate() error: %v", err)
	}
	if len(resp.Hashtags) != 10 {
		t.Errorf("len(hashtags) = %d, want top 10", len(resp.Hashtags))
	}
}

func TestTagsUseCurrentFollowerCount(t *testing.T) {
	posts := []*models.Post{captionPost(1, 50, "#promo")}

	resp := mustAggregate(t, testProfile(100), posts, DefaultFilters())
	if resp.Hashtags[0].AvgEngagementRate != 0.5 {
		t.Errorf("avg_engagement_rate = %v, want 0.5", resp.Hashtags[0].AvgEngagementRate)
	}
}
