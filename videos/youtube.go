package videos

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultYouTubeBaseURL is the YouTube Data API v3 root.
const DefaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"

// YouTubeSearcher searches videos with the YouTube Data API.
type YouTubeSearcher struct {
	apiKey     string
	baseURL    string
	maxResults int
	httpClient *http.Client
}

// NewYouTubeSearcher creates a searcher. An empty baseURL selects
// DefaultYouTubeBaseURL; maxResults <= 0 selects 5.
func NewYouTubeSearcher(apiKey, baseURL string, maxResults int) *YouTubeSearcher {
	if baseURL == "" {
		baseURL = DefaultYouTubeBaseURL
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	return &YouTubeSearcher{
		apiKey:     apiKey,
		baseURL:    baseURL,
		maxResults: maxResults,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			Kind    string `json:"kind"`
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

// Search implements Searcher. Results that are not videos are ignored.
func (s *YouTubeSearcher) Search(ctx context.Context, query string) ([]Video, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(s.maxResults))
	params.Set("q", query)
	params.Set("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query YouTube: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	var body youtubeSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode YouTube response: %w", err)
	}

	videos := []Video{}
	for _, item := range body.Items {
		if item.ID.VideoID == "" {
			continue
		}
		videos = append(videos, Video{
			Source: "youtube-data-api",
			Host:   "youtube",
			URL:    "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Title:  item.Snippet.Title,
		})
	}

	return videos, nil
}
