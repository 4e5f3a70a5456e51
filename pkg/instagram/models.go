package instagram

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexibleID is an id that the API sends either as a JSON number or a string
type FlexibleID string

// UnmarshalJSON accepts 123, "123" and null
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

// Int64 parses the id as a decimal number
func (id FlexibleID) Int64() (int64, error) {
	return strconv.ParseInt(string(id), 10, 64)
}

// webProfileResponse is returned by the web_profile_info endpoint
type webProfileResponse struct {
	RequiresToLogin bool   `json:"requires_to_login"`
	Status          string `json:"status"`
	Data            struct {
		User *GraphUser `json:"user"`
	} `json:"data"`
}

// GraphUser represents an Instagram user profile
type GraphUser struct {
	ID                       FlexibleID      `json:"id"`
	Username                 string          `json:"username"`
	FullName                 string          `json:"full_name"`
	IsPrivate                bool            `json:"is_private"`
	FollowedByViewer         bool            `json:"followed_by_viewer"`
	ProfilePicURL            string          `json:"profile_pic_url"`
	ProfilePicURLHD          string          `json:"profile_pic_url_hd"`
	EdgeOwnerToTimelineMedia MediaConnection `json:"edge_owner_to_timeline_media"`
}

// MediaConnection contains one page of a user's timeline media
type MediaConnection struct {
	Count    int        `json:"count"`
	PageInfo PageInfo   `json:"page_info"`
	Edges    []NodeEdge `json:"edges"`
}

// PageInfo contains pagination information
type PageInfo struct {
	HasNextPage bool   `json:"has_next_page"`
	EndCursor   string `json:"end_cursor"`
}

// NodeEdge wraps a single media node
type NodeEdge struct {
	Node GraphNode `json:"node"`
}

// GraphNode represents a single timeline media item (photo, video or sidecar)
type GraphNode struct {
	ID               string     `json:"id"`
	Shortcode        string     `json:"shortcode"`
	Typename         string     `json:"__typename"`
	DisplayURL       string     `json:"display_url"`
	VideoURL         string     `json:"video_url"`
	IsVideo          bool       `json:"is_video"`
	TakenAtTimestamp int64      `json:"taken_at_timestamp"`
	Location         *Location  `json:"location"`
	Owner            GraphOwner `json:"owner"`

	EdgeMediaToCaption struct {
		Edges []struct {
			Node struct {
				Text string `json:"text"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"edge_media_to_caption"`

	EdgeSidecarToChildren *struct {
		Edges []NodeEdge `json:"edges"`
	} `json:"edge_sidecar_to_children"`

	EdgeMediaPreviewLike struct {
		Count int `json:"count"`
	} `json:"edge_media_preview_like"`

	EdgeMediaToComment struct {
		Count int `json:"count"`
	} `json:"edge_media_to_comment"`
}

// GraphOwner is the owner reference embedded in a GraphNode
type GraphOwner struct {
	ID       FlexibleID `json:"id"`
	Username string     `json:"username"`
}

// Location represents geographic location
type Location struct {
	ID   FlexibleID `json:"id"`
	Name string     `json:"name"`
	Slug string     `json:"slug"`
}

// mediaQueryResponse is returned by the timeline media GraphQL query
type mediaQueryResponse struct {
	Status string `json:"status"`
	Data   struct {
		User *struct {
			EdgeOwnerToTimelineMedia MediaConnection `json:"edge_owner_to_timeline_media"`
		} `json:"user"`
	} `json:"data"`
}

// userInfoResponse is returned by the mobile users/{id}/info endpoint
type userInfoResponse struct {
	Status string  `json:"status"`
	User   *V1User `json:"user"`
}

// V1User is a user reference in the mobile API
type V1User struct {
	PK        FlexibleID `json:"pk"`
	Username  string     `json:"username"`
	FullName  string     `json:"full_name"`
	IsPrivate bool       `json:"is_private"`
}

// V1Media is a post or story item in the mobile API
type V1Media struct {
	PK            FlexibleID `json:"pk"`
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	MediaType     int        `json:"media_type"`
	TakenAt       int64      `json:"taken_at"`
	User          *V1User    `json:"user"`
	LikeCount     int        `json:"like_count"`
	CommentCount  int        `json:"comment_count"`
	CarouselMedia []V1Media  `json:"carousel_media"`
	// Injected is set on sponsored feed entries
	Injected json.RawMessage `json:"injected"`

	Location *struct {
		PK   FlexibleID `json:"pk"`
		Name string     `json:"name"`
	} `json:"location"`

	Caption *struct {
		Text string `json:"text"`
	} `json:"caption"`

	ImageVersions2 struct {
		Candidates []struct {
			URL    string `json:"url"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"candidates"`
	} `json:"image_versions2"`

	VideoVersions []struct {
		URL string `json:"url"`
	} `json:"video_versions"`
}

// Media types used by the mobile API
const (
	mediaTypeImage    = 1
	mediaTypeVideo    = 2
	mediaTypeCarousel = 8
)

// timelineResponse is one page of the home feed
type timelineResponse struct {
	Status        string `json:"status"`
	MoreAvailable bool   `json:"more_available"`
	NextMaxID     string `json:"next_max_id"`
	FeedItems     []struct {
		MediaOrAd *V1Media `json:"media_or_ad"`
	} `json:"feed_items"`
}

// reelsTrayResponse lists the users with currently visible stories
type reelsTrayResponse struct {
	Status string `json:"status"`
	Tray   []struct {
		ID   FlexibleID `json:"id"`
		User V1User     `json:"user"`
	} `json:"tray"`
}

// Reel is a user's story or one highlight
type Reel struct {
	ID    FlexibleID `json:"id"`
	Title string     `json:"title"`
	User  V1User     `json:"user"`
	Items []V1Media  `json:"items"`
}

// reelsMediaResponse maps reel ids to their items
type reelsMediaResponse struct {
	Status string          `json:"status"`
	Reels  map[string]Reel `json:"reels"`
}

// highlightsTrayResponse lists a user's highlights
type highlightsTrayResponse struct {
	Status string `json:"status"`
	Tray   []struct {
		ID    FlexibleID `json:"id"`
		Title string     `json:"title"`
	} `json:"tray"`
}

// commentsResponse is one page of comments on a post
type commentsResponse struct {
	Status    string    `json:"status"`
	Comments  []Comment `json:"comments"`
	NextMaxID string    `json:"next_max_id"`
}

// Comment is a single comment on a post
type Comment struct {
	PK        FlexibleID `json:"pk"`
	Text      string     `json:"text"`
	CreatedAt int64      `json:"created_at"`
	LikeCount int        `json:"comment_like_count"`
	User      V1User     `json:"user"`
}
