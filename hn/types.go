// Package hn provides the two HN transports the ingestor and front-page
// tracker use: Algolia's search API (primary ingestion path) and the HN
// Firebase API (fallback ingestion path plus front-page polling).
package hn

// Item is a normalized Hacker News story, independent of which transport
// produced it.
type Item struct {
	ID          int64
	Type        string
	By          string
	Time        int64
	Text        string
	URL         string
	Title       string
	Score       int
	Descendants int
}

// firebaseItem mirrors the Firebase /v0/item/{id}.json response shape.
type firebaseItem struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Text        string `json:"text"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Dead        bool   `json:"dead"`
	Deleted     bool   `json:"deleted"`
}

func (f firebaseItem) toItem() Item {
	title := f.Title
	if title == "" {
		title = "[no title]"
	}
	by := f.By
	if by == "" {
		by = "[deleted]"
	}
	return Item{
		ID:          f.ID,
		Type:        f.Type,
		By:          by,
		Time:        f.Time,
		Text:        f.Text,
		URL:         f.URL,
		Title:       title,
		Score:       f.Score,
		Descendants: f.Descendants,
	}
}

// algoliaHit mirrors one entry of the Algolia search_by_date response.
type algoliaHit struct {
	ObjectID    string   `json:"objectID"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	StoryText   string   `json:"story_text"`
	Author      string   `json:"author"`
	CreatedAtI  int64    `json:"created_at_i"`
	Points      int      `json:"points"`
	NumComments int      `json:"num_comments"`
	Tags        []string `json:"_tags"`
}

func (h algoliaHit) isStory() bool {
	for _, t := range h.Tags {
		if t == "story" {
			return true
		}
	}
	return false
}
