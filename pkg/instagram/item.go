package instagram

import (
	"time"

	"instarchive/pkg/config"
	"instarchive/pkg/metadata"
)

// Item identifies the owner of a story item or feed post offered to an
// ItemFilter before it is downloaded
type Item struct {
	OwnerUsername string
	OwnerID       int64
}

// ItemFilter decides whether an item is downloaded
type ItemFilter func(Item) bool

// DownloadOptions selects what a profile download fetches
type DownloadOptions struct {
	ProfilePic bool
	Posts      bool
	Highlights bool
	Stories    bool
	// FastUpdate stops each source at the first item already on disk
	FastUpdate bool
}

// OptionsFromConfig returns the profile download options from the download settings
func OptionsFromConfig(cfg config.DownloadConfig) DownloadOptions {
	return DownloadOptions{
		ProfilePic: cfg.ProfilePic,
		Posts:      cfg.Posts,
		Highlights: cfg.Highlights,
		Stories:    cfg.Stories,
		FastUpdate: cfg.FastUpdate,
	}
}

// resource is one media file of a post
type resource struct {
	URL     string
	IsVideo bool
}

func (r resource) ext() string {
	if r.IsVideo {
		return ".mp4"
	}
	return ".jpg"
}

// post is a downloadable item normalized from either API flavor
type post struct {
	ID        string
	PK        string
	Shortcode string
	Typename  string
	TakenAt   time.Time
	Caption   string
	Owner     Item
	Resources []resource
	Likes     int
	Comments  int
	Location  *metadata.Location
}

// Stem returns the base name shared by all of the post's files
func (p *post) Stem() string {
	return metadata.ItemStem(p.TakenAt, p.Typename)
}

func (p *post) toMetadata() *metadata.Item {
	node := &metadata.Node{
		ID:               p.ID,
		Shortcode:        p.Shortcode,
		Typename:         p.Typename,
		TakenAtTimestamp: p.TakenAt.Unix(),
		Caption:          p.Caption,
		LikesCount:       p.Likes,
		CommentsCount:    p.Comments,
		Location:         p.Location,
		Owner:            metadata.NewOwner(p.Owner.OwnerID, p.Owner.OwnerUsername),
	}
	if len(p.Resources) > 0 {
		first := p.Resources[0]
		node.IsVideo = first.IsVideo
		if first.IsVideo {
			node.VideoURL = first.URL
		} else {
			node.DisplayURL = first.URL
		}
	}
	return &metadata.Item{Node: node, DownloadedAt: time.Now().UTC()}
}

// postFromGraphNode converts a timeline media node; owner fills in fields
// the GraphQL response omits
func postFromGraphNode(n GraphNode, owner Item) post {
	p := post{
		ID:        n.ID,
		PK:        n.ID,
		Shortcode: n.Shortcode,
		Typename:  n.Typename,
		TakenAt:   time.Unix(n.TakenAtTimestamp, 0).UTC(),
		Owner:     owner,
		Likes:     n.EdgeMediaPreviewLike.Count,
		Comments:  n.EdgeMediaToComment.Count,
	}
	if p.Typename == "" {
		p.Typename = "GraphImage"
		if n.IsVideo {
			p.Typename = "GraphVideo"
		}
	}
	if len(n.EdgeMediaToCaption.Edges) > 0 {
		p.Caption = n.EdgeMediaToCaption.Edges[0].Node.Text
	}
	if n.Location != nil {
		p.Location = &metadata.Location{ID: string(n.Location.ID), Name: n.Location.Name, Slug: n.Location.Slug}
	}

	if n.EdgeSidecarToChildren != nil && len(n.EdgeSidecarToChildren.Edges) > 0 {
		for _, child := range n.EdgeSidecarToChildren.Edges {
			p.Resources = append(p.Resources, graphResource(child.Node))
		}
	} else {
		p.Resources = []resource{graphResource(n)}
	}
	return p
}

func graphResource(n GraphNode) resource {
	if n.IsVideo && n.VideoURL != "" {
		return resource{URL: n.VideoURL, IsVideo: true}
	}
	return resource{URL: n.DisplayURL}
}

// postFromV1Media converts a feed post or story item. Story items carry
// the story typenames; fallback supplies the owner when the item has none.
func postFromV1Media(m V1Media, story bool, fallback *V1User) (post, error) {
	user := m.User
	if user == nil {
		user = fallback
	}

	var owner Item
	if user != nil {
		id, err := user.PK.Int64()
		if err != nil {
			return post{}, err
		}
		owner = Item{OwnerUsername: user.Username, OwnerID: id}
	}

	p := post{
		ID:        m.ID,
		PK:        string(m.PK),
		Shortcode: m.Code,
		Typename:  v1Typename(m.MediaType, story),
		TakenAt:   time.Unix(m.TakenAt, 0).UTC(),
		Owner:     owner,
		Likes:     m.LikeCount,
		Comments:  m.CommentCount,
	}
	if m.Caption != nil {
		p.Caption = m.Caption.Text
	}
	if m.Location != nil {
		p.Location = &metadata.Location{ID: string(m.Location.PK), Name: m.Location.Name}
	}

	if len(m.CarouselMedia) > 0 {
		for _, child := range m.CarouselMedia {
			if r, ok := v1Resource(child); ok {
				p.Resources = append(p.Resources, r)
			}
		}
	} else if r, ok := v1Resource(m); ok {
		p.Resources = []resource{r}
	}
	return p, nil
}

func v1Typename(mediaType int, story bool) string {
	switch {
	case story && mediaType == mediaTypeVideo:
		return "GraphStoryVideo"
	case story:
		return "GraphStoryImage"
	case mediaType == mediaTypeCarousel:
		return "GraphSidecar"
	case mediaType == mediaTypeVideo:
		return "GraphVideo"
	default:
		return "GraphImage"
	}
}

func v1Resource(m V1Media) (resource, bool) {
	if m.MediaType == mediaTypeVideo && len(m.VideoVersions) > 0 {
		return resource{URL: m.VideoVersions[0].URL, IsVideo: true}, true
	}
	if len(m.ImageVersions2.Candidates) > 0 {
		return resource{URL: m.ImageVersions2.Candidates[0].URL}, true
	}
	return resource{}, false
}
