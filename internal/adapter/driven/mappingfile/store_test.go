package mappingfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradedesk/gradedesk/internal/adapter/driven/mappingfile"
	"github.com/gradedesk/gradedesk/internal/domain/model"
)

func buildTestMapping(t *testing.T) *model.Mapping {
	t.Helper()
	m, err := model.BuildMapping([]model.RosterEntry{
		{Identity: "Alice Wong", ExternalID: "102"},
		{Identity: "Bob Doyle", ExternalID: "205"},
		{Identity: "Charlie Nguyen", ExternalID: "301"},
	})
	require.NoError(t, err)
	return m
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := mappingfile.NewStore()
	path := filepath.Join(t.TempDir(), "student_mapping.json")

	orig := buildTestMapping(t)
	require.NoError(t, store.Save(ctx, path, orig))

	loaded, err := store.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, orig.Entries(), loaded.Entries())

	// Lookups behave identically on the restored mapping.
	p, err := loaded.Pseudonym("Bob Doyle")
	require.NoError(t, err)
	assert.Equal(t, "Student_002", p)

	entry, err := loaded.Resolve("Student_003")
	require.NoError(t, err)
	assert.Equal(t, "Charlie Nguyen", entry.RealIdentity)
	assert.Equal(t, "301", entry.ExternalID)
}

func TestStore_FileMode(t *testing.T) {
	ctx := context.Background()
	store := mappingfile.NewStore()
	path := filepath.Join(t.TempDir(), "student_mapping.json")

	require.NoError(t, store.Save(ctx, path, buildTestMapping(t)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	store := mappingfile.NewStore()
	path := filepath.Join(t.TempDir(), "student_mapping.json")

	require.NoError(t, store.Save(ctx, path, buildTestMapping(t)))

	smaller, err := model.BuildMapping([]model.RosterEntry{{Identity: "Dana Reyes"}})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, path, smaller))

	loaded, err := store.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestStore_LoadMissingFile(t *testing.T) {
	store := mappingfile.NewStore()

	_, err := store.Load(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrCorruptMapping)
}

func TestStore_LoadCorrupt(t *testing.T) {
	ctx := context.Background()
	store := mappingfile.NewStore()
	dir := t.TempDir()

	t.Run("unparseable JSON", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.json")
		require.NoError(t, os.WriteFile(path, []byte("][not json"), 0o600))

		_, err := store.Load(ctx, path)
		assert.ErrorIs(t, err, model.ErrCorruptMapping)
	})

	t.Run("duplicate pseudonym", func(t *testing.T) {
		path := filepath.Join(dir, "dup.json")
		doc := `{"version":1,"entries":[
			{"real_identity":"Alice Wong","pseudonym":"Student_001"},
			{"real_identity":"Bob Doyle","pseudonym":"Student_001"}]}`
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		_, err := store.Load(ctx, path)
		assert.ErrorIs(t, err, model.ErrCorruptMapping)
	})

	t.Run("no entries", func(t *testing.T) {
		path := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"entries":[]}`), 0o600))

		_, err := store.Load(ctx, path)
		assert.ErrorIs(t, err, model.ErrCorruptMapping)
	})
}
