package gosortable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const _testConfigFile = `
defaults:
  rankColumn: position
  sortOnCreate: Prepend
  transactional: true
collections:
  tasks:
    flagsColumn: can_sorts
    direction: asc
    partition:
      tenant: acme
  tags:
    flagsColumn: none
    transactional: false
  broken:
    direction: sideways
`

func Test_DefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig().normalize()
	require.NoError(t, err)

	assert.Equal(t, "weight", cfg.RankColumn)
	assert.Equal(t, "id", cfg.KeyColumn)
	assert.Equal(t, SortOnCreateAppend, cfg.SortOnCreate)
	assert.Equal(t, DirectionDESC, cfg.Direction)
	assert.False(t, cfg.FlagsEnabled())
	assert.False(t, cfg.Transactional)
}

func Test_Config_normalize(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"zero value gets defaults", Config{}, true},
		{"lower case enums", Config{SortOnCreate: "none", Direction: "asc"}, true},
		{"unknown sortOnCreate", Config{SortOnCreate: "apend"}, false},
		{"unknown direction", Config{Direction: "up"}, false},
		{"forbidden rank column", Config{RankColumn: "weight; --"}, false},
		{"flags equal rank", Config{RankColumn: "weight", FlagsColumn: "weight"}, false},
		{"forbidden partition column", Config{Partition: Partition{"a b": 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.normalize()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func Test_ParseSortOnCreate(t *testing.T) {
	got, err := ParseSortOnCreate(" APPEND ")
	require.NoError(t, err)
	assert.Equal(t, SortOnCreateAppend, got)

	_, err = ParseSortOnCreate("prepnd")
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "closest: 'prepend'")
}

func Test_File_Collection(t *testing.T) {
	f, err := ParseFile([]byte(_testConfigFile))
	require.NoError(t, err)

	t.Run("collection over defaults", func(t *testing.T) {
		cfg, err := f.Collection("tasks")
		require.NoError(t, err)

		assert.Equal(t, "position", cfg.RankColumn)
		assert.Equal(t, "can_sorts", cfg.FlagsColumn)
		assert.Equal(t, "id", cfg.KeyColumn)
		assert.Equal(t, SortOnCreatePrepend, cfg.SortOnCreate)
		assert.Equal(t, DirectionASC, cfg.Direction)
		assert.Equal(t, Partition{"tenant": "acme"}, cfg.Partition)
		assert.True(t, cfg.Transactional)
	})

	t.Run("collection switches defaults off", func(t *testing.T) {
		cfg, err := f.Collection("tags")
		require.NoError(t, err)

		assert.False(t, cfg.Transactional)
		assert.False(t, cfg.FlagsEnabled())
		assert.Empty(t, cfg.FlagsColumn)
		assert.Equal(t, "position", cfg.RankColumn)
	})

	t.Run("unknown collection gets defaults", func(t *testing.T) {
		cfg, err := f.Collection("missing")
		require.NoError(t, err)

		assert.Equal(t, "position", cfg.RankColumn)
		assert.Equal(t, DirectionDESC, cfg.Direction)
		assert.Nil(t, cfg.Partition)
	})

	t.Run("invalid collection", func(t *testing.T) {
		_, err := f.Collection("broken")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("nil file", func(t *testing.T) {
		cfg, err := (*File)(nil).Collection("tasks")
		require.NoError(t, err)
		assert.Equal(t, DefaultRankColumn, cfg.RankColumn)
	})
}

func Test_File_Collection_overridesDefaults(t *testing.T) {
	f, err := ParseFile([]byte(`
defaults:
  transactional: true
  flagsColumn: can_sorts
collections:
  tasks:
    transactional: false
    flagsColumn: none
  cards:
    direction: asc
`))
	require.NoError(t, err)

	tasks, err := f.Collection("tasks")
	require.NoError(t, err)
	assert.False(t, tasks.Transactional)
	assert.False(t, tasks.FlagsEnabled())

	cards, err := f.Collection("cards")
	require.NoError(t, err)
	assert.True(t, cards.Transactional)
	assert.Equal(t, "can_sorts", cards.FlagsColumn)
}

func Test_ParseFile_invalid(t *testing.T) {
	_, err := ParseFile([]byte("defaults: [1, 2"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func Test_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sortable.yaml")
	require.NoError(t, os.WriteFile(path, []byte(_testConfigFile), 0o600))

	t.Setenv("SORTABLE_RANK_COLUMN", "sort_order")
	t.Setenv("SORTABLE_DIRECTION", "asc")
	t.Setenv("SORTABLE_TRANSACTIONAL", "false")

	f, err := LoadFile(path)
	require.NoError(t, err)

	cfg, err := f.Collection("missing")
	require.NoError(t, err)

	assert.Equal(t, "sort_order", cfg.RankColumn)
	assert.Equal(t, DirectionASC, cfg.Direction)
	assert.Equal(t, SortOnCreatePrepend, cfg.SortOnCreate)
	assert.False(t, cfg.Transactional)
}

func Test_LoadFile_envOnly(t *testing.T) {
	t.Setenv("SORTABLE_FLAGS_COLUMN", "can_sorts")
	t.Setenv("SORTABLE_SORT_ON_CREATE", "none")

	f, err := LoadFile("")
	require.NoError(t, err)

	cfg, err := f.Collection("tasks")
	require.NoError(t, err)

	assert.Equal(t, "can_sorts", cfg.FlagsColumn)
	assert.Equal(t, SortOnCreateNone, cfg.SortOnCreate)
}

func Test_LoadFile_missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
