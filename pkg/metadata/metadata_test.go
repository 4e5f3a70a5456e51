package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "instarchive/pkg/errors"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		username string
		id       int64
	}{
		{
			name:     "string id",
			input:    `{"node":{"id":"1","__typename":"GraphImage","owner":{"id":"42","username":"alice"}}}`,
			username: "alice",
			id:       42,
		},
		{
			name:     "numeric id",
			input:    `{"node":{"owner":{"id":42,"username":"alice"}},"instaloader":{"version":"4.10"}}`,
			username: "alice",
			id:       42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item, err := Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.username, item.OwnerUsername())
			assert.Equal(t, tt.id, item.OwnerID())
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	inputs := map[string]string{
		"not json":         `{"node":`,
		"no node":          `{}`,
		"null node":        `{"node":null}`,
		"no owner":         `{"node":{"id":"1"}}`,
		"no username":      `{"node":{"owner":{"id":"42"}}}`,
		"empty username":   `{"node":{"owner":{"id":"42","username":""}}}`,
		"no id":            `{"node":{"owner":{"username":"alice"}}}`,
		"non-numeric id":   `{"node":{"owner":{"id":"abc","username":"alice"}}}`,
		"negative id":      `{"node":{"owner":{"id":-1,"username":"alice"}}}`,
		"wrong owner type": `{"node":{"owner":"alice"}}`,
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(input))
			require.Error(t, err)
			assert.True(t, errs.IsParsing(err), "got %v", err)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2024-01-02_03-04-05_UTC.json")
	item := &Item{Node: &Node{
		ID:       "99",
		Typename: "GraphVideo",
		IsVideo:  true,
		Caption:  "hello",
		Owner:    NewOwner(42, "alice"),
	}}

	require.NoError(t, Save(path, item))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id": "42"`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", loaded.OwnerUsername())
	assert.Equal(t, int64(42), loaded.OwnerID())
	assert.Equal(t, "hello", loaded.Node.Caption)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Equal(t, errs.ErrorTypeIO, errs.TypeOf(err))
}

func TestIsItemFile(t *testing.T) {
	assert.True(t, IsItemFile("2024-01-02_03-04-05_UTC.json"))
	assert.False(t, IsItemFile("2024-01-02_03-04-05_UTC_comments.json"))
	assert.False(t, IsItemFile("2024-01-02_03-04-05_UTC.jpg"))
	assert.False(t, IsItemFile("2024-01-02_03-04-05_UTC.json.xz"))
	assert.False(t, IsItemFile("userid"))
}

func TestItemStem(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	assert.Equal(t, "2024-01-02_02-04-05_UTC_GraphImage", ItemStem(ts, "GraphImage"))
	assert.Equal(t, "2024-01-02_02-04-05_UTC_GraphImage", Stem("2024-01-02_02-04-05_UTC_GraphImage.json"))
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(dir, "a"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), nil, 0644))
	assert.True(t, Exists(dir, "a"))
}
