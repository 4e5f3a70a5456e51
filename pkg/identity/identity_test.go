package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"instarchive/pkg/archive"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/logger"
)

func mkAccount(t *testing.T, dataDir, name, userid string) {
	t.Helper()
	dir := filepath.Join(dataDir, name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	if userid != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, archive.UserIDFile), []byte(userid), 0644))
	}
}

func TestBuildIndex(t *testing.T) {
	dataDir := t.TempDir()
	mkAccount(t, dataDir, "alice", "42")
	mkAccount(t, dataDir, "bob", "7\n")
	mkAccount(t, dataDir, "nouserid", "")
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "stray.txt"), []byte("1"), 0644))

	log := logger.NewTestLogger()
	index, err := BuildIndex(dataDir, log)
	require.NoError(t, err)

	assert.Equal(t, Index{42: "alice", 7: "bob"}, index)
	assert.Empty(t, log.GetMessagesByLevel("WARN"))
}

func TestBuildIndexSkipsMalformed(t *testing.T) {
	dataDir := t.TempDir()
	mkAccount(t, dataDir, "alice", "42")
	mkAccount(t, dataDir, "broken", "forty-two")
	mkAccount(t, dataDir, "negative", "-3")

	log := logger.NewTestLogger()
	index, err := BuildIndex(dataDir, log)
	require.NoError(t, err)

	assert.Equal(t, Index{42: "alice"}, index)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 2)
}

func TestBuildIndexSkipsStaging(t *testing.T) {
	dataDir := t.TempDir()
	mkAccount(t, dataDir, archive.FeedStaging, "1")
	mkAccount(t, dataDir, "alice", "42")

	index, err := BuildIndex(dataDir, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, Index{42: "alice"}, index)
}

func TestBuildIndexDuplicateID(t *testing.T) {
	dataDir := t.TempDir()
	mkAccount(t, dataDir, "alice", "42")
	mkAccount(t, dataDir, "alice_old", "42")

	log := logger.NewTestLogger()
	index, err := BuildIndex(dataDir, log)
	require.NoError(t, err)

	assert.Equal(t, "alice_old", index[42])
	require.True(t, log.HasMessageContaining("WARN", "Duplicate userid"))

	warn := log.GetMessagesByLevel("WARN")[0]
	assert.Equal(t, "alice", warn.Fields["previous"])
	assert.Equal(t, "alice_old", warn.Fields["account"])
}

func TestBuildIndexMissingDataDir(t *testing.T) {
	_, err := BuildIndex(filepath.Join(t.TempDir(), "missing"), logger.NewNopLogger())
	require.Error(t, err)
	assert.Equal(t, errs.ErrorTypeIO, errs.TypeOf(err))
}

func TestIndexLookupRename(t *testing.T) {
	index := Index{42: "alice"}

	name, ok := index.Lookup(42)
	assert.True(t, ok)
	assert.Equal(t, "alice", name)

	index.Rename(42, "alice2")
	name, _ = index.Lookup(42)
	assert.Equal(t, "alice2", name)

	_, ok = index.Lookup(1)
	assert.False(t, ok)
}
