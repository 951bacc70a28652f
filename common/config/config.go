package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the navquery runtime configuration, usually loaded from YAML.
type Config struct {
	Mesh  MeshConfig  `yaml:"mesh"`
	Query QueryConfig `yaml:"query"`
	Log   LogConfig   `yaml:"log"`
}

// Rect is an inclusive block of grid cells.
type Rect struct {
	MinX int `yaml:"min_x"`
	MinZ int `yaml:"min_z"`
	MaxX int `yaml:"max_x"`
	MaxZ int `yaml:"max_z"`
}

func (r Rect) Contains(cx, cz int) bool {
	return cx >= r.MinX && cx <= r.MaxX && cz >= r.MinZ && cz <= r.MaxZ
}

// AreaRect tags a block of cells with an area id.
type AreaRect struct {
	Rect `yaml:",inline"`
	Area uint8 `yaml:"area"`
}

type MeshConfig struct {
	Origin         [3]float32 `yaml:"origin"`
	TilesX         int        `yaml:"tiles_x"`
	TilesZ         int        `yaml:"tiles_z"`
	TileCells      int        `yaml:"tile_cells"`
	CellVoxels     int        `yaml:"cell_voxels"`
	Cs             float32    `yaml:"cs"`
	Ch             float32    `yaml:"ch"`
	WalkableHeight float32    `yaml:"walkable_height"`
	WalkableRadius float32    `yaml:"walkable_radius"`
	WalkableClimb  float32    `yaml:"walkable_climb"`
	BvTree         bool       `yaml:"bv_tree"`
	Blocked        []Rect     `yaml:"blocked"`
	Areas          []AreaRect `yaml:"areas"`
}

// IsBlocked reports whether the global cell lies in one of the blocked rects.
func (m *MeshConfig) IsBlocked(cx, cz int) bool {
	for _, r := range m.Blocked {
		if r.Contains(cx, cz) {
			return true
		}
	}
	return false
}

// AreaAt returns the area of the last rect covering the cell, or 0.
func (m *MeshConfig) AreaAt(cx, cz int) uint8 {
	var area uint8
	for _, r := range m.Areas {
		if r.Contains(cx, cz) {
			area = r.Area
		}
	}
	return area
}

type QueryConfig struct {
	MaxNodes        int32             `yaml:"max_nodes"`
	PoolSize        int               `yaml:"pool_size"`
	MaxPath         int               `yaml:"max_path"`
	MaxStraightPath int               `yaml:"max_straight_path"`
	QueueIters      int               `yaml:"queue_iters"`
	HalfExtents     [3]float32        `yaml:"half_extents"`
	AreaCosts       map[uint8]float32 `yaml:"area_costs"`
	IncludeFlags    uint16            `yaml:"include_flags"`
	ExcludeFlags    uint16            `yaml:"exclude_flags"`
}

// LogConfig selects the zap level and encoder. A non-empty File rotates
// through lumberjack, otherwise logs go to stderr.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
	Compress    bool   `yaml:"compress"`
}

func Default() *Config {
	return &Config{
		Mesh: MeshConfig{
			TilesX:         4,
			TilesZ:         4,
			TileCells:      16,
			CellVoxels:     2,
			Cs:             0.3,
			Ch:             0.2,
			WalkableHeight: 2,
			WalkableRadius: 0.6,
			WalkableClimb:  0.9,
			BvTree:         true,
		},
		Query: QueryConfig{
			MaxNodes:        2048,
			PoolSize:        4,
			MaxPath:         256,
			MaxStraightPath: 256,
			QueueIters:      100,
			HalfExtents:     [3]float32{2, 4, 2},
			IncludeFlags:    0xffff,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load reads a YAML file on top of Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	m := &c.Mesh
	switch {
	case m.TilesX <= 0 || m.TilesZ <= 0:
		return fmt.Errorf("%w: mesh tiles %dx%d", ErrInvalidConfig, m.TilesX, m.TilesZ)
	case m.TileCells <= 0 || m.CellVoxels <= 0:
		return fmt.Errorf("%w: mesh tile_cells %d cell_voxels %d", ErrInvalidConfig, m.TileCells, m.CellVoxels)
	case !(m.Cs > 0) || !(m.Ch > 0):
		return fmt.Errorf("%w: mesh cs %v ch %v", ErrInvalidConfig, m.Cs, m.Ch)
	case m.WalkableHeight < 0 || m.WalkableRadius < 0 || m.WalkableClimb < 0:
		return fmt.Errorf("%w: negative walkable limits", ErrInvalidConfig)
	}
	for _, a := range m.Areas {
		if a.Area >= 64 {
			return fmt.Errorf("%w: area %d out of range", ErrInvalidConfig, a.Area)
		}
	}

	q := &c.Query
	switch {
	case q.MaxNodes <= 0 || q.MaxNodes > 65534:
		return fmt.Errorf("%w: query max_nodes %d", ErrInvalidConfig, q.MaxNodes)
	case q.PoolSize <= 0:
		return fmt.Errorf("%w: query pool_size %d", ErrInvalidConfig, q.PoolSize)
	case q.MaxPath <= 0 || q.MaxStraightPath <= 0:
		return fmt.Errorf("%w: query max_path %d max_straight_path %d", ErrInvalidConfig, q.MaxPath, q.MaxStraightPath)
	case q.QueueIters <= 0:
		return fmt.Errorf("%w: query queue_iters %d", ErrInvalidConfig, q.QueueIters)
	}
	for area := range q.AreaCosts {
		if area >= 64 {
			return fmt.Errorf("%w: area cost for %d out of range", ErrInvalidConfig, area)
		}
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Log.Level)
	}
	return nil
}
