package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instarchive/pkg/config"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/logger"
)

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Archive.Directory = filepath.Join(t.TempDir(), "archive")
	a := New(cfg.Paths(), logger.NewNopLogger())
	_, err := a.Init("")
	require.NoError(t, err)
	return a
}

func TestInit(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Archive.Directory = filepath.Join(t.TempDir(), "archive")
	a := New(cfg.Paths(), logger.NewNopLogger())

	result, err := a.Init("me")
	require.NoError(t, err)
	assert.False(t, result.Anonymous)
	assert.True(t, result.CreatedWatchlist)
	assert.DirExists(t, cfg.Paths().Data)
	assert.FileExists(t, cfg.Paths().WatchlistFile)

	username, err := a.Username()
	require.NoError(t, err)
	assert.Equal(t, "me", username)

	// Re-running keeps the watchlist and switches to anonymous mode
	require.NoError(t, os.WriteFile(cfg.Paths().WatchlistFile, []byte("alice\n"), 0644))
	result, err = a.Init("")
	require.NoError(t, err)
	assert.True(t, result.Anonymous)
	assert.False(t, result.CreatedWatchlist)

	content, err := os.ReadFile(cfg.Paths().WatchlistFile)
	require.NoError(t, err)
	assert.Equal(t, "alice\n", string(content))

	username, err = a.Username()
	require.NoError(t, err)
	assert.Empty(t, username)
}

func TestUsernameMissingArchive(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Archive.Directory = filepath.Join(t.TempDir(), "nowhere")
	a := New(cfg.Paths(), logger.NewNopLogger())

	_, err := a.Username()
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeIO, errs.TypeOf(err))
}

func TestCreateAccountAndReadUserID(t *testing.T) {
	a := newTestArchive(t)

	assert.False(t, a.HasUserID("alice"))
	_, err := a.ReadUserID("alice")
	assert.True(t, errs.IsNotFound(err))

	require.NoError(t, a.CreateAccount("alice", 42))
	assert.True(t, a.HasUserID("alice"))

	content, err := os.ReadFile(filepath.Join(a.AccountDir("alice"), UserIDFile))
	require.NoError(t, err)
	assert.Equal(t, "42", string(content))

	id, err := a.ReadUserID("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	// An existing userid is never overwritten
	require.NoError(t, a.CreateAccount("alice", 99))
	id, err = a.ReadUserID("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	// No temp files left behind
	_, err = os.Stat(filepath.Join(a.AccountDir("alice"), UserIDFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestCreateAccountRejectsUnsafeNames(t *testing.T) {
	a := newTestArchive(t)

	for _, name := range []string{"", ".", "..", "../escape", `a\b`} {
		err := a.CreateAccount(name, 1)
		assert.True(t, errs.IsInvariant(err), "name %q", name)
	}
}

func TestReadUserIDMalformed(t *testing.T) {
	a := newTestArchive(t)

	dir := a.AccountDir("bob")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, UserIDFile), []byte("not-a-number"), 0644))

	_, err := a.ReadUserID("bob")
	require.Error(t, err)
	assert.True(t, errs.IsParsing(err))
}

func TestParseUserID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{" 1234567890\n", 1234567890, false},
		{"0", 0, false},
		{"-5", 0, true},
		{"", 0, true},
		{"12ab", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseUserID([]byte(tt.input))
			if tt.wantErr {
				assert.True(t, errs.IsParsing(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenameAccount(t *testing.T) {
	a := newTestArchive(t)
	require.NoError(t, a.CreateAccount("alice", 42))
	require.NoError(t, os.WriteFile(filepath.Join(a.AccountDir("alice"), "post.jpg"), []byte("x"), 0644))

	require.NoError(t, a.RenameAccount("alice", "alice2"))

	assert.NoDirExists(t, a.AccountDir("alice"))
	assert.FileExists(t, filepath.Join(a.AccountDir("alice2"), "post.jpg"))
	id, err := a.ReadUserID("alice2")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestRenameAccountConflict(t *testing.T) {
	a := newTestArchive(t)
	require.NoError(t, a.CreateAccount("alice", 42))
	require.NoError(t, a.CreateAccount("alice2", 7))

	err := a.RenameAccount("alice", "alice2")
	assert.True(t, errs.IsConflict(err))

	// Both directories are untouched
	id, err := a.ReadUserID("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	id, err = a.ReadUserID("alice2")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestRenameAccountMissingSource(t *testing.T) {
	a := newTestArchive(t)
	err := a.RenameAccount("ghost", "ghost2")
	assert.True(t, errs.IsNotFound(err))
}

func TestMoveFile(t *testing.T) {
	a := newTestArchive(t)
	staging := filepath.Join(a.DataDir(), FeedStaging)
	require.NoError(t, os.MkdirAll(staging, 0755))
	require.NoError(t, a.CreateAccount("alice", 42))

	src := filepath.Join(staging, "2024-01-02_03-04-05_UTC_GraphImage.jpg")
	require.NoError(t, os.WriteFile(src, []byte("img"), 0644))

	require.NoError(t, a.MoveFile(src, a.AccountDir("alice")))

	assert.NoFileExists(t, src)
	assert.FileExists(t, filepath.Join(a.AccountDir("alice"), "2024-01-02_03-04-05_UTC_GraphImage.jpg"))
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0644))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}
