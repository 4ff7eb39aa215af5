package teddycloud

import (
	"context"
	"encoding/json"
	"net/http"

	"tonietool/internal/services"
)

// Tag is one figurine known to the server.
type Tag struct {
	UID     string   `json:"uid"`
	RUID    string   `json:"ruid"`
	Type    string   `json:"type"`
	Valid   bool     `json:"valid"`
	Series  string   `json:"series"`
	Episode string   `json:"episode"`
	Source  string   `json:"source"`
	Tracks  []string `json:"tracks"`
}

type tagsResponse struct {
	Tags []struct {
		UID       string `json:"uid"`
		RUID      string `json:"ruid"`
		Type      string `json:"type"`
		Valid     bool   `json:"valid"`
		Source    string `json:"source"`
		TonieInfo struct {
			Series  string   `json:"series"`
			Episode string   `json:"episode"`
			Tracks  []string `json:"tracks"`
		} `json:"tonieInfo"`
	} `json:"tags"`
}

// Tags lists the tags the server knows about, preferring the v2 content
// endpoint and falling back to the legacy tag index on older servers.
func (c *Client) Tags(ctx context.Context) ([]Tag, error) {
	tags, err := c.tagsFrom(ctx, "/api/v2/content/json/tags")
	if err == nil {
		return tags, nil
	}
	legacy, legacyErr := c.tagsFrom(ctx, "/api/getTagIndex")
	if legacyErr != nil {
		return nil, err
	}
	return legacy, nil
}

func (c *Client) tagsFrom(ctx context.Context, apiPath string) ([]Tag, error) {
	target := c.endpoint(apiPath, nil)
	resp, err := c.doWithRetry(ctx, "list tags", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var decoded tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, services.Wrap(services.ErrNetwork, "teddycloud", "list tags", "decode response", err)
	}
	tags := make([]Tag, 0, len(decoded.Tags))
	for _, t := range decoded.Tags {
		tags = append(tags, Tag{
			UID:     t.UID,
			RUID:    t.RUID,
			Type:    t.Type,
			Valid:   t.Valid,
			Source:  t.Source,
			Series:  t.TonieInfo.Series,
			Episode: t.TonieInfo.Episode,
			Tracks:  t.TonieInfo.Tracks,
		})
	}
	return tags, nil
}
