package tikhub

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// SearchItem is one video hit with the loosely-typed author and
// statistics blocks passed downstream to the extractor.
type SearchItem struct {
	VideoID      string
	Caption      string
	ThumbnailURL string
	Author       map[string]any
	Statistics   map[string]any
}

// SearchPage is one page of search results plus the cursor to continue.
type SearchPage struct {
	Items   []SearchItem
	HasMore bool
	Cursor  int
}

// SearchVideos queries recent videos for a keyword. publishDays bounds
// how old a video may be; sortType 0 is relevance.
func (c *Client) SearchVideos(ctx context.Context, keyword string, cursor, count, publishDays int) (*SearchPage, error) {
	params := url.Values{}
	params.Set("keyword", strings.TrimPrefix(keyword, "#"))
	params.Set("publish_time", strconv.Itoa(publishDays))
	params.Set("sort_type", "0")
	params.Set("cursor", strconv.Itoa(cursor))
	params.Set("count", strconv.Itoa(count))

	data, err := c.getJSON(ctx, "/api/v1/tiktok/app/v3/fetch_video_search_result", params)
	if err != nil {
		return nil, err
	}

	inner := mapField(data, "data")
	page := &SearchPage{
		HasMore: boolField(inner, "has_more"),
	}
	if next, ok := intField(inner, "cursor"); ok {
		page.Cursor = next
	}

	for _, raw := range listField(inner, "search_item_list") {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		aweme := mapField(item, "aweme_info")
		if aweme == nil {
			continue
		}
		author := mapField(aweme, "author")
		stats := mapField(aweme, "statistics")
		if author == nil || stats == nil {
			continue
		}

		videoID := stringField(aweme, "aweme_id")
		if videoID == "" {
			videoID = stringField(item, "aweme_id")
		}

		page.Items = append(page.Items, SearchItem{
			VideoID:      videoID,
			Caption:      stringField(aweme, "desc"),
			ThumbnailURL: coverURL(aweme),
			Author:       author,
			Statistics:   stats,
		})
	}

	return page, nil
}

// coverURL digs the first usable cover image URL out of the video block.
func coverURL(aweme map[string]any) string {
	video := mapField(aweme, "video")
	if video == nil {
		return ""
	}
	for _, field := range []string{"cover", "origin_cover", "dynamic_cover"} {
		cover := mapField(video, field)
		if cover == nil {
			continue
		}
		for _, u := range listField(cover, "url_list") {
			if s, ok := u.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
