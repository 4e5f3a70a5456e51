package metadata

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"instarchive/pkg/archive"
	errs "instarchive/pkg/errors"
)

const (
	// Ext is the extension of item metadata files
	Ext = ".json"

	// CommentsSuffix marks the comment metadata file that shares an item's stem
	CommentsSuffix = "_comments"

	// StemTimeFormat formats the date part of an item stem
	StemTimeFormat = "2006-01-02_15-04-05_UTC"
)

// Item is the top-level record stored in an item metadata file
type Item struct {
	Node         *Node     `json:"node"`
	DownloadedAt time.Time `json:"downloaded_at,omitempty"`
}

// Node describes one downloaded post, story item or highlight item
type Node struct {
	ID               string    `json:"id"`
	Shortcode        string    `json:"shortcode,omitempty"`
	Typename         string    `json:"__typename"`
	DisplayURL       string    `json:"display_url,omitempty"`
	VideoURL         string    `json:"video_url,omitempty"`
	IsVideo          bool      `json:"is_video"`
	TakenAtTimestamp int64     `json:"taken_at_timestamp"`
	Caption          string    `json:"caption,omitempty"`
	LikesCount       int       `json:"likes_count,omitempty"`
	CommentsCount    int       `json:"comments_count,omitempty"`
	Location         *Location `json:"location,omitempty"`
	TaggedUsers      []Owner   `json:"tagged_users,omitempty"`
	Owner            *Owner    `json:"owner"`
}

// Location represents geographic location
type Location struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Owner identifies the account an item belongs to
type Owner struct {
	ID       *UserID `json:"id"`
	Username string  `json:"username"`
}

// UserID is a numeric account id. It is written as a JSON string and read
// from either a string or a number.
type UserID int64

// MarshalJSON encodes the id as a decimal string
func (id UserID) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(id), 10))
}

// UnmarshalJSON accepts "123" or 123
func (id *UserID) UnmarshalJSON(data []byte) error {
	text := string(bytes.TrimSpace(data))
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = unquoted
	}

	v, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || v < 0 {
		return errs.New(errs.ErrorTypeParsing, "invalid user id %s", string(data))
	}
	*id = UserID(v)
	return nil
}

// NewOwner builds an Owner value for encoding
func NewOwner(id int64, username string) *Owner {
	uid := UserID(id)
	return &Owner{ID: &uid, Username: username}
}

// Decode parses item metadata and checks that node.owner carries both a
// username and a numeric id. Any problem is reported as a parsing error.
func Decode(data []byte) (*Item, error) {
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		if errs.IsParsing(err) {
			return nil, err
		}
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "malformed metadata")
	}

	switch {
	case item.Node == nil:
		return nil, errs.New(errs.ErrorTypeParsing, "metadata has no node")
	case item.Node.Owner == nil:
		return nil, errs.New(errs.ErrorTypeParsing, "metadata has no node.owner")
	case item.Node.Owner.Username == "":
		return nil, errs.New(errs.ErrorTypeParsing, "metadata has no node.owner.username")
	case item.Node.Owner.ID == nil:
		return nil, errs.New(errs.ErrorTypeParsing, "metadata has no node.owner.id")
	}

	return &item, nil
}

// OwnerUsername returns the owning account's name from a decoded item
func (i *Item) OwnerUsername() string {
	return i.Node.Owner.Username
}

// OwnerID returns the owning account's id from a decoded item
func (i *Item) OwnerID() int64 {
	return int64(*i.Node.Owner.ID)
}

// Load reads and decodes a metadata file
func Load(path string) (*Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "reading %s", filepath.Base(path))
	}
	return Decode(data)
}

// Save writes item as indented JSON to path
func Save(path string, item *Item) error {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, err, "encoding metadata")
	}
	if err := archive.WriteFileAtomic(path, data, 0644); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "writing %s", filepath.Base(path))
	}
	return nil
}

// IsItemFile reports whether name is an item metadata file rather than
// media, a caption or a comments file
func IsItemFile(name string) bool {
	if filepath.Ext(name) != Ext {
		return false
	}
	return !strings.HasSuffix(Stem(name), CommentsSuffix)
}

// Stem returns name without its extension
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// ItemStem returns the base name shared by all files of an item taken at t
func ItemStem(t time.Time, typename string) string {
	return t.UTC().Format(StemTimeFormat) + "_" + typename
}

// Exists reports whether the metadata file for stem exists in dir
func Exists(dir, stem string) bool {
	_, err := os.Stat(filepath.Join(dir, stem+Ext))
	return err == nil
}
