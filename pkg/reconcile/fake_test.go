package reconcile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"instarchive/pkg/archive"
	"instarchive/pkg/config"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/instagram"
	"instarchive/pkg/logger"
	"instarchive/pkg/metadata"
	"instarchive/pkg/watchlist"
)

// fakeFetcher stands in for the Instagram loader. Accepted stories and feed
// items are staged as metadata plus media files, the way the loader does.
type fakeFetcher struct {
	t       *testing.T
	archive *archive.Archive

	byName      map[string]*instagram.Profile
	byID        map[int64]*instagram.Profile
	nameErr     map[string]error
	idErr       map[int64]error
	downloadErr map[string]error

	stories    []instagram.Item
	feed       []instagram.Item
	storiesErr error
	feedErr    error

	// onLookup runs before every by-name lookup
	onLookup func(name string)
	// beforeStories runs before the stories are offered
	beforeStories func()

	nameLookups []string
	idLookups   []int64
	downloaded  []string
	accepted    []instagram.Item
	feedCalls   int
	staged      int
}

func newFakeFetcher(t *testing.T, a *archive.Archive) *fakeFetcher {
	return &fakeFetcher{
		t:           t,
		archive:     a,
		byName:      map[string]*instagram.Profile{},
		byID:        map[int64]*instagram.Profile{},
		nameErr:     map[string]error{},
		idErr:       map[int64]error{},
		downloadErr: map[string]error{},
	}
}

// add registers a public profile reachable by name and id
func (f *fakeFetcher) add(name string, id int64) *instagram.Profile {
	p := &instagram.Profile{Username: name, ID: id}
	f.byName[name] = p
	f.byID[id] = p
	return p
}

func (f *fakeFetcher) ProfileByName(name string) (*instagram.Profile, error) {
	f.nameLookups = append(f.nameLookups, name)
	if f.onLookup != nil {
		f.onLookup(name)
	}
	if err, ok := f.nameErr[name]; ok {
		return nil, err
	}
	if p, ok := f.byName[name]; ok {
		return p, nil
	}
	return nil, errs.New(errs.ErrorTypeNotFound, "profile %s does not exist", name)
}

func (f *fakeFetcher) ProfileByID(id int64) (*instagram.Profile, error) {
	f.idLookups = append(f.idLookups, id)
	if err, ok := f.idErr[id]; ok {
		return nil, err
	}
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, errs.New(errs.ErrorTypeNotFound, "no profile with id %d", id)
}

func (f *fakeFetcher) DownloadStories(filter instagram.ItemFilter) error {
	if f.beforeStories != nil {
		f.beforeStories()
	}
	for _, item := range f.stories {
		if filter(item) {
			f.stage(archive.StoriesStaging, item)
		}
	}
	return f.storiesErr
}

func (f *fakeFetcher) DownloadFeedPosts(maxCount int, filter instagram.ItemFilter) error {
	f.feedCalls++
	for i, item := range f.feed {
		if i >= maxCount {
			break
		}
		if filter(item) {
			f.stage(archive.FeedStaging, item)
		}
	}
	return f.feedErr
}

func (f *fakeFetcher) DownloadProfile(profile *instagram.Profile, opts instagram.DownloadOptions) error {
	f.downloaded = append(f.downloaded, profile.Username)
	return f.downloadErr[profile.Username]
}

func (f *fakeFetcher) stage(staging string, item instagram.Item) {
	f.t.Helper()
	f.accepted = append(f.accepted, item)
	f.staged++

	dir := f.archive.AccountDir(staging)
	require.NoError(f.t, os.MkdirAll(dir, 0755))

	taken := time.Date(2024, 1, 2, 3, 4, f.staged, 0, time.UTC)
	stem := metadata.ItemStem(taken, "GraphImage")
	require.NoError(f.t, os.WriteFile(filepath.Join(dir, stem+".jpg"), []byte("jpeg"), 0644))
	require.NoError(f.t, metadata.Save(filepath.Join(dir, stem+metadata.Ext), &metadata.Item{
		Node: &metadata.Node{
			ID:               strconv.Itoa(f.staged),
			Typename:         "GraphImage",
			TakenAtTimestamp: taken.Unix(),
			Owner:            metadata.NewOwner(item.OwnerID, item.OwnerUsername),
		},
	}))
}

// newTestArchive creates an initialized archive whose watchlist holds content
func newTestArchive(t *testing.T, content string) (*archive.Archive, *watchlist.Store) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Archive.Directory = t.TempDir()
	a := archive.New(cfg.Paths(), logger.NewNopLogger())
	_, err := a.Init("me")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(a.Paths().WatchlistFile, []byte(content), 0644))
	return a, watchlist.NewStore(a.Paths().WatchlistFile, logger.NewNopLogger())
}

func readWatchlist(t *testing.T, a *archive.Archive) string {
	t.Helper()
	data, err := os.ReadFile(a.Paths().WatchlistFile)
	require.NoError(t, err)
	return string(data)
}

func itemFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if metadata.IsItemFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names
}

func mustUserID(t *testing.T, a *archive.Archive, name string) string {
	t.Helper()
	id, err := a.ReadUserID(name)
	require.NoError(t, err)
	return fmt.Sprint(id)
}
