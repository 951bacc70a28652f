package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
mesh:
  tiles_x: 2
  tiles_z: 3
  blocked:
    - {min_x: 1, min_z: 1, max_x: 2, max_z: 4}
  areas:
    - {min_x: 0, min_z: 0, max_x: 0, max_z: 9, area: 3}
    - {min_x: 0, min_z: 5, max_x: 0, max_z: 5, area: 7}
query:
  pool_size: 2
  area_costs:
    3: 4.5
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Mesh.TilesX)
	assert.Equal(t, 3, cfg.Mesh.TilesZ)
	// Untouched keys keep their defaults.
	assert.Equal(t, Default().Mesh.TileCells, cfg.Mesh.TileCells)
	assert.Equal(t, Default().Query.MaxNodes, cfg.Query.MaxNodes)
	assert.Equal(t, 2, cfg.Query.PoolSize)
	assert.InDelta(t, 4.5, cfg.Query.AreaCosts[3], 1e-6)
	assert.Equal(t, "debug", cfg.Log.Level)

	assert.True(t, cfg.Mesh.IsBlocked(2, 4))
	assert.False(t, cfg.Mesh.IsBlocked(3, 4))
	assert.Equal(t, uint8(3), cfg.Mesh.AreaAt(0, 2))
	assert.Equal(t, uint8(7), cfg.Mesh.AreaAt(0, 5))
	assert.Equal(t, uint8(0), cfg.Mesh.AreaAt(1, 5))
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"no tiles":      "mesh: {tiles_x: 0}",
		"cell size":     "mesh: {cs: 0}",
		"area id":       "mesh: {areas: [{area: 64}]}",
		"max nodes":     "query: {max_nodes: 70000}",
		"pool":          "query: {pool_size: 0}",
		"straight path": "query: {max_straight_path: -1}",
		"area cost":     "query: {area_costs: {80: 1}}",
		"log level":     "log: {level: loud}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := Parse([]byte("mesh: [1, 2"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte("query: {max_path: 12}\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Query.MaxPath)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
