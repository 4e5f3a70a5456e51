package instagram

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	// WebBaseURL is the base URL for Instagram's web API
	WebBaseURL = "https://www.instagram.com"

	// APIBaseURL is the base URL for Instagram's mobile API
	APIBaseURL = "https://i.instagram.com"

	// ProfileEndpoint is the endpoint pattern for user profiles
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// MediaEndpoint is the endpoint pattern for user media
	MediaEndpoint = "/graphql/query/"

	// MediaQueryHash is the query hash for fetching user media
	MediaQueryHash = "e769aa130647d2354c40ea6a439bfc08"

	// DefaultMediaLimit is the default number of media items to fetch per request
	DefaultMediaLimit = 12

	// MaxMediaLimit is the maximum number of media items that can be fetched per request
	MaxMediaLimit = 50

	// MaxReelsPerRequest bounds the reel ids sent in one reels_media request
	MaxReelsPerRequest = 20
)

// Endpoints holds the base URLs requests are sent to
type Endpoints struct {
	Web string
	API string
}

// DefaultEndpoints returns the production Instagram endpoints
func DefaultEndpoints() Endpoints {
	return Endpoints{Web: WebBaseURL, API: APIBaseURL}
}

// ProfileURL constructs the URL for fetching a user's profile by name
func (e Endpoints) ProfileURL(username string) string {
	params := url.Values{}
	params.Set("username", username)

	return fmt.Sprintf("%s%s?%s", e.Web, ProfileEndpoint, params.Encode())
}

// UserInfoURL constructs the URL for fetching a user by numeric id
func (e Endpoints) UserInfoURL(userID int64) string {
	return fmt.Sprintf("%s/api/v1/users/%d/info/", e.API, userID)
}

// MediaURL constructs the URL for fetching a page of a user's media
func (e Endpoints) MediaURL(userID string, after string, limit int) string {
	if limit <= 0 {
		limit = DefaultMediaLimit
	} else if limit > MaxMediaLimit {
		limit = MaxMediaLimit
	}

	variables := map[string]interface{}{
		"id":    userID,
		"first": limit,
	}
	if after != "" {
		variables["after"] = after
	}
	encoded, _ := json.Marshal(variables)

	params := url.Values{}
	params.Set("query_hash", MediaQueryHash)
	params.Set("variables", string(encoded))

	return fmt.Sprintf("%s%s?%s", e.Web, MediaEndpoint, params.Encode())
}

// TimelineURL constructs the URL for a page of the viewer's home feed
func (e Endpoints) TimelineURL(maxID string) string {
	u := e.API + "/api/v1/feed/timeline/"
	if maxID != "" {
		u += "?" + url.Values{"max_id": {maxID}}.Encode()
	}
	return u
}

// ReelsTrayURL returns the URL listing users with visible stories
func (e Endpoints) ReelsTrayURL() string {
	return e.API + "/api/v1/feed/reels_tray/"
}

// ReelsMediaURL constructs the URL fetching the items of the given reels
func (e Endpoints) ReelsMediaURL(reelIDs []string) string {
	params := url.Values{}
	for _, id := range reelIDs {
		params.Add("reel_ids", id)
	}
	return fmt.Sprintf("%s/api/v1/feed/reels_media/?%s", e.API, params.Encode())
}

// HighlightsTrayURL constructs the URL listing a user's highlights
func (e Endpoints) HighlightsTrayURL(userID int64) string {
	return fmt.Sprintf("%s/api/v1/highlights/%d/highlights_tray/", e.API, userID)
}

// CommentsURL constructs the URL for a page of comments on a post
func (e Endpoints) CommentsURL(mediaPK string, maxID string) string {
	u := fmt.Sprintf("%s/api/v1/media/%s/comments/", e.API, url.PathEscape(mediaPK))
	if maxID != "" {
		u += "?" + url.Values{"max_id": {maxID}}.Encode()
	}
	return u
}

// PostURL constructs the URL for a specific post
func PostURL(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	return fmt.Sprintf("%s/p/%s/", WebBaseURL, shortcode)
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	// Instagram usernames can only contain letters, numbers, periods, and underscores
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @ and trailing slashes or spaces
func SanitizeUsername(username string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	return strings.TrimRight(username, "/ ")
}
