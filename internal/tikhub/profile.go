package tikhub

import (
	"context"
	"fmt"
	"net/url"
)

// FetchProfile fetches a user profile by handle and returns the raw
// user block. Handles that no longer resolve surface as errors so the
// roll call can count them as failed.
func (c *Client) FetchProfile(ctx context.Context, handle string) (map[string]any, error) {
	params := url.Values{}
	params.Set("unique_id", handle)

	data, err := c.getJSON(ctx, "/api/v1/tiktok/app/v3/handler_user_profile", params)
	if err != nil {
		return nil, err
	}

	user := mapField(mapField(data, "data"), "user")
	if user == nil {
		return nil, fmt.Errorf("profile for %q: empty user block", handle)
	}
	return user, nil
}

// AvatarURL extracts the best-effort avatar URL from an author or
// profile block.
func AvatarURL(raw map[string]any) string {
	for _, field := range []string{"avatar_larger", "avatar_medium", "avatar_thumb"} {
		thumb := mapField(raw, field)
		if thumb == nil {
			continue
		}
		for _, u := range listField(thumb, "url_list") {
			if s, ok := u.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
