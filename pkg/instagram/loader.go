package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"instarchive/internal/downloader"
	"instarchive/pkg/archive"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/logger"
	"instarchive/pkg/metadata"
)

const (
	// maxCommentPages bounds comment pagination per post
	maxCommentPages = 20
	// defaultMediaWorkers is the number of media files of one item fetched at once
	defaultMediaWorkers = 3
)

// Loader downloads stories, feed posts and profiles into an archive's data
// directory. Feed posts land in the feed staging directory, stories in the
// stories staging directory and profile downloads in the account directory.
type Loader struct {
	client     *Client
	archive    *archive.Archive
	comments   bool
	fastUpdate bool
	media      *downloader.Pool
	logger     logger.Logger
	now        func() time.Time
}

// NewLoader creates a Loader. comments enables fetching post comments;
// fastUpdate stops the stories and feed sources at the first item already
// on disk.
func NewLoader(client *Client, a *archive.Archive, comments, fastUpdate bool, log logger.Logger) *Loader {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Loader{
		client:     client,
		archive:    a,
		comments:   comments,
		fastUpdate: fastUpdate,
		media:      downloader.NewPool(defaultMediaWorkers, client, writeMedia, log),
		logger:     log,
		now:        time.Now,
	}
}

// WithMediaWorkers sets how many media files of one item are fetched
// concurrently
func (l *Loader) WithMediaWorkers(n int) *Loader {
	l.media = downloader.NewPool(n, l.client, writeMedia, l.logger)
	return l
}

// ProfileByName resolves a profile by its current username
func (l *Loader) ProfileByName(username string) (*Profile, error) {
	return l.client.ProfileByName(username)
}

// ProfileByID resolves a profile by its stable numeric id
func (l *Loader) ProfileByID(id int64) (*Profile, error) {
	return l.client.ProfileByID(id)
}

// DownloadStories downloads the current stories of every followed account
// accepted by filter into the stories staging directory
func (l *Loader) DownloadStories(filter ItemFilter) error {
	var tray reelsTrayResponse
	if err := l.client.GetJSON(l.client.endpoints.ReelsTrayURL(), &tray); err != nil {
		return err
	}

	var reelIDs []string
	for _, entry := range tray.Tray {
		id, err := entry.User.PK.Int64()
		if err != nil {
			l.logger.WarnWithFields("Story reel without owner id", map[string]interface{}{
				"reel": string(entry.ID),
			})
			continue
		}
		if filter != nil && !filter(Item{OwnerUsername: entry.User.Username, OwnerID: id}) {
			l.logger.DebugWithFields("Stories skipped", map[string]interface{}{
				"account": entry.User.Username,
			})
			continue
		}
		reelIDs = append(reelIDs, string(entry.ID))
	}

	staging := l.archive.AccountDir(archive.StoriesStaging)
	var failures []error
	for start := 0; start < len(reelIDs); start += MaxReelsPerRequest {
		end := min(start+MaxReelsPerRequest, len(reelIDs))
		chunk := reelIDs[start:end]

		reels, err := l.fetchReels(chunk)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		for _, id := range chunk {
			reel, ok := reels[id]
			if !ok {
				continue
			}
			failures = append(failures, l.saveReel(reel, staging, true, l.fastUpdate)...)
		}
	}

	l.logger.InfoWithFields("Stories collected", map[string]interface{}{
		"reels":  len(reelIDs),
		"errors": len(failures),
	})
	return errors.Join(failures...)
}

// DownloadFeedPosts walks up to maxCount posts of the viewer's home feed
// and downloads those accepted by filter into the feed staging directory
func (l *Loader) DownloadFeedPosts(maxCount int, filter ItemFilter) error {
	staging := l.archive.AccountDir(archive.FeedStaging)

	var failures []error
	seen, downloaded := 0, 0
	maxID := ""

	defer func() {
		l.logger.InfoWithFields("Feed collected", map[string]interface{}{
			"seen":       seen,
			"downloaded": downloaded,
			"errors":     len(failures),
		})
	}()

	for {
		var page timelineResponse
		if err := l.client.GetJSON(l.client.endpoints.TimelineURL(maxID), &page); err != nil {
			failures = append(failures, err)
			return errors.Join(failures...)
		}

		for _, entry := range page.FeedItems {
			media := entry.MediaOrAd
			if media == nil || len(media.Injected) > 0 {
				continue
			}
			if seen >= maxCount {
				return errors.Join(failures...)
			}
			seen++

			p, err := postFromV1Media(*media, false, nil)
			if err != nil {
				l.logger.WithError(err).Warn("Feed post with malformed owner")
				failures = append(failures, errs.Wrap(errs.ErrorTypeParsing, err, "feed post %s", media.Code))
				continue
			}
			if filter != nil && !filter(p.Owner) {
				continue
			}

			ok, err := l.save(p, staging, true)
			if err != nil {
				failures = append(failures, err)
				continue
			}
			if !ok && l.fastUpdate {
				l.logger.DebugWithFields("Feed already up to date", map[string]interface{}{
					"account": p.Owner.OwnerUsername,
				})
				return errors.Join(failures...)
			}
			if ok {
				downloaded++
			}
		}

		if !page.MoreAvailable || page.NextMaxID == "" {
			return errors.Join(failures...)
		}
		maxID = page.NextMaxID
	}
}

// DownloadProfile downloads the selected parts of a profile into its
// account directory. Every part is attempted; the errors of all failed
// parts are joined. Only the profile picture is fetched for inaccessible
// private profiles, and stories and highlights need a logged-in session.
func (l *Loader) DownloadProfile(profile *Profile, opts DownloadOptions) error {
	dir := l.archive.AccountDir(profile.Username)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "creating %s", dir)
	}

	log := logger.ForAccount(l.logger, profile.Username)
	var failures []error

	if opts.ProfilePic {
		if err := l.downloadProfilePic(profile, dir); err != nil {
			log.WithError(err).Warn("Profile picture download failed")
			failures = append(failures, err)
		}
	}

	if !profile.Accessible() {
		return errors.Join(failures...)
	}

	if l.client.Anonymous() && (opts.Stories || opts.Highlights) {
		log.Debug("Stories and highlights need a login; skipping them")
	} else {
		if opts.Stories {
			failures = append(failures, l.downloadProfileStories(profile, dir, opts.FastUpdate)...)
		}
		if opts.Highlights {
			failures = append(failures, l.downloadHighlights(profile, dir, opts.FastUpdate)...)
		}
	}

	if opts.Posts {
		failures = append(failures, l.downloadPosts(profile, dir, opts.FastUpdate)...)
	}

	return errors.Join(failures...)
}

func (l *Loader) downloadProfilePic(profile *Profile, dir string) error {
	if profile.ProfilePicURL == "" {
		return nil
	}

	data, modified, err := l.client.Download(profile.ProfilePicURL)
	if err != nil {
		return err
	}
	if modified.IsZero() {
		modified = l.now()
	}

	path := filepath.Join(dir, modified.UTC().Format(metadata.StemTimeFormat)+"_profile_pic.jpg")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return writeMedia(path, data, modified)
}

func (l *Loader) downloadProfileStories(profile *Profile, dir string, fast bool) []error {
	id := strconv.FormatInt(profile.ID, 10)
	reels, err := l.fetchReels([]string{id})
	if err != nil {
		return []error{err}
	}
	reel, ok := reels[id]
	if !ok {
		return nil
	}
	return l.saveReel(reel, dir, false, fast)
}

func (l *Loader) downloadHighlights(profile *Profile, dir string, fast bool) []error {
	var tray highlightsTrayResponse
	if err := l.client.GetJSON(l.client.endpoints.HighlightsTrayURL(profile.ID), &tray); err != nil {
		return []error{err}
	}

	titles := make(map[string]string, len(tray.Tray))
	ids := make([]string, 0, len(tray.Tray))
	for _, h := range tray.Tray {
		titles[string(h.ID)] = h.Title
		ids = append(ids, string(h.ID))
	}

	var failures []error
	for start := 0; start < len(ids); start += MaxReelsPerRequest {
		chunk := ids[start:min(start+MaxReelsPerRequest, len(ids))]
		reels, err := l.fetchReels(chunk)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		for _, id := range chunk {
			reel, ok := reels[id]
			if !ok {
				continue
			}
			sub := filepath.Join(dir, highlightDirName(titles[id], id))
			failures = append(failures, l.saveReel(reel, sub, false, fast)...)
		}
	}
	return failures
}

func (l *Loader) downloadPosts(profile *Profile, dir string, fast bool) []error {
	owner := Item{OwnerUsername: profile.Username, OwnerID: profile.ID}
	userID := strconv.FormatInt(profile.ID, 10)

	var failures []error
	page := profile.firstPage
	cursor := ""
	for {
		if page == nil {
			var response mediaQueryResponse
			if err := l.client.GetJSON(l.client.endpoints.MediaURL(userID, cursor, DefaultMediaLimit), &response); err != nil {
				return append(failures, err)
			}
			if response.Data.User == nil {
				return append(failures, errs.New(errs.ErrorTypeNotFound, "no media for %s", profile.Username))
			}
			page = &response.Data.User.EdgeOwnerToTimelineMedia
		}

		for _, edge := range page.Edges {
			ok, err := l.save(postFromGraphNode(edge.Node, owner), dir, false)
			if err != nil {
				failures = append(failures, err)
				continue
			}
			if !ok && fast {
				return failures
			}
		}

		if !page.PageInfo.HasNextPage || page.PageInfo.EndCursor == "" {
			return failures
		}
		cursor = page.PageInfo.EndCursor
		page = nil
	}
}

func (l *Loader) fetchReels(ids []string) (map[string]Reel, error) {
	var response reelsMediaResponse
	if err := l.client.GetJSON(l.client.endpoints.ReelsMediaURL(ids), &response); err != nil {
		return nil, err
	}
	return response.Reels, nil
}

// saveReel saves a reel's items newest first
func (l *Loader) saveReel(reel Reel, dir string, staged, fast bool) []error {
	var failures []error
	for i := len(reel.Items) - 1; i >= 0; i-- {
		p, err := postFromV1Media(reel.Items[i], true, &reel.User)
		if err != nil {
			failures = append(failures, errs.Wrap(errs.ErrorTypeParsing, err, "story item %s", reel.Items[i].ID))
			continue
		}
		ok, err := l.save(p, dir, staged)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		if !ok && fast {
			break
		}
	}
	return failures
}

// save writes a post's media, caption, comments and finally its metadata
// into dir. It returns false without writing anything when the metadata
// file already exists in dir or, for staged items, in the owner's
// account directory.
func (l *Loader) save(p post, dir string, staged bool) (bool, error) {
	stem := p.Stem()
	if metadata.Exists(dir, stem) {
		return false, nil
	}
	if staged && archive.ValidAccountName(p.Owner.OwnerUsername) &&
		metadata.Exists(l.archive.AccountDir(p.Owner.OwnerUsername), stem) {
		return false, nil
	}

	log := l.logger.WithFields(map[string]interface{}{
		"account": p.Owner.OwnerUsername,
		"item":    stem,
	})

	if len(p.Resources) == 0 {
		log.Warn("Item has no downloadable media")
		return false, errs.New(errs.ErrorTypeParsing, "item %s has no media", stem)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, errs.Wrap(errs.ErrorTypeIO, err, "creating %s", dir)
	}

	jobs := make([]downloader.Job, len(p.Resources))
	for i, r := range p.Resources {
		name := stem + r.ext()
		if len(p.Resources) > 1 {
			name = fmt.Sprintf("%s_%d%s", stem, i+1, r.ext())
		}
		jobs[i] = downloader.Job{URL: r.URL, Path: filepath.Join(dir, name), ModTime: p.TakenAt}
	}
	if _, err := l.media.Run(context.Background(), jobs); err != nil {
		return false, err
	}

	if p.Caption != "" {
		if err := archive.WriteFileAtomic(filepath.Join(dir, stem+".txt"), []byte(p.Caption), 0644); err != nil {
			return false, errs.Wrap(errs.ErrorTypeIO, err, "writing caption")
		}
	}

	if l.comments && p.Comments > 0 && p.PK != "" {
		if err := l.saveComments(p.PK, filepath.Join(dir, stem+metadata.CommentsSuffix+metadata.Ext)); err != nil {
			log.WithError(err).Warn("Comments download failed")
			return false, err
		}
	}

	if err := metadata.Save(filepath.Join(dir, stem+metadata.Ext), p.toMetadata()); err != nil {
		return false, err
	}

	if p.Shortcode != "" {
		log = log.WithField("url", PostURL(p.Shortcode))
	}
	log.Info("Item downloaded")
	return true, nil
}

// savedComment is the on-disk form of one comment
type savedComment struct {
	ID         string          `json:"id"`
	CreatedAt  int64           `json:"created_at"`
	Text       string          `json:"text"`
	LikesCount int             `json:"likes_count"`
	Owner      *metadata.Owner `json:"owner"`
}

func (l *Loader) saveComments(mediaPK, path string) error {
	var saved []savedComment
	maxID := ""
	for page := 0; page < maxCommentPages; page++ {
		var response commentsResponse
		if err := l.client.GetJSON(l.client.endpoints.CommentsURL(mediaPK, maxID), &response); err != nil {
			return err
		}
		for _, c := range response.Comments {
			comment := savedComment{
				ID:         string(c.PK),
				CreatedAt:  c.CreatedAt,
				Text:       c.Text,
				LikesCount: c.LikeCount,
			}
			if id, err := c.User.PK.Int64(); err == nil {
				comment.Owner = metadata.NewOwner(id, c.User.Username)
			}
			saved = append(saved, comment)
		}
		if response.NextMaxID == "" {
			break
		}
		maxID = response.NextMaxID
	}

	if saved == nil {
		saved = []savedComment{}
	}
	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, err, "encoding comments")
	}
	if err := archive.WriteFileAtomic(path, data, 0644); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "writing comments")
	}
	return nil
}

// writeMedia writes a media file and stamps it with the item's time
func writeMedia(path string, data []byte, modified time.Time) error {
	if err := archive.WriteFileAtomic(path, data, 0644); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "writing %s", filepath.Base(path))
	}
	if !modified.IsZero() {
		_ = os.Chtimes(path, modified, modified)
	}
	return nil
}

// highlightDirName returns a directory name for a highlight
func highlightDirName(title, id string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if !archive.ValidAccountName(name) {
		return strings.TrimPrefix(id, "highlight:")
	}
	return name
}
