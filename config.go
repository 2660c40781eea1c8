package gosortable

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// SortOnCreate defines how a new record obtains its initial rank.
type SortOnCreate string

const (
	// SortOnCreateNone leaves the rank as set by the caller.
	SortOnCreateNone SortOnCreate = "none"
	// SortOnCreatePrepend assigns MinRank()-1.
	SortOnCreatePrepend SortOnCreate = "prepend"
	// SortOnCreateAppend assigns MaxRank()+1.
	SortOnCreateAppend SortOnCreate = "append"
)

var _sortOnCreateValues = []string{
	string(SortOnCreateNone),
	string(SortOnCreatePrepend),
	string(SortOnCreateAppend),
}

func (s SortOnCreate) Valid() bool {
	return s == SortOnCreateNone || s == SortOnCreatePrepend || s == SortOnCreateAppend
}

// ParseSortOnCreate parses a creation policy case-insensitively.
func ParseSortOnCreate(s string) (SortOnCreate, error) {
	ret := SortOnCreate(strings.ToLower(strings.TrimSpace(s)))
	if !ret.Valid() {
		return "", fmt.Errorf("%w: invalid sortOnCreate '%s'. closest: '%s'",
			ErrInvalidConfig, s, closestAlias(string(ret), _sortOnCreateValues))
	}

	return ret, nil
}

const (
	DefaultRankColumn = "weight"
	DefaultKeyColumn  = "id"

	// FlagsColumnNone switches MoveFlags maintenance off even when a lower
	// config layer names a flags column.
	FlagsColumnNone = "none"
)

// Config holds the per collection settings of an Engine.
type Config struct {
	// RankColumn is the rank column name. Defaults to "weight".
	RankColumn string `yaml:"rankColumn"`
	// FlagsColumn enables MoveFlags maintenance when not empty and not
	// FlagsColumnNone.
	FlagsColumn string `yaml:"flagsColumn"`
	// KeyColumn is the primary key column name. Defaults to "id".
	KeyColumn    string       `yaml:"keyColumn"`
	SortOnCreate SortOnCreate `yaml:"sortOnCreate"`
	// Direction is the listing direction. The head of the list is the first
	// record in this direction. Defaults to DESC: the highest rank is first.
	Direction Direction `yaml:"direction"`
	// Partition is a static predicate applied to every query.
	Partition Partition `yaml:"partition"`
	// Transactional wraps every operation in Store.Transaction.
	Transactional bool `yaml:"transactional"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		RankColumn:   DefaultRankColumn,
		KeyColumn:    DefaultKeyColumn,
		SortOnCreate: SortOnCreateAppend,
		Direction:    DirectionDESC,
	}
}

// FlagsEnabled reports whether MoveFlags maintenance is configured.
func (c Config) FlagsEnabled() bool {
	return c.FlagsColumn != "" && c.FlagsColumn != FlagsColumnNone
}

// withDefaults fills empty fields from base. Transactional is set when
// either layer sets it; CollectionConfig carries an explicit false.
func (c Config) withDefaults(base Config) Config {
	if c.RankColumn == "" {
		c.RankColumn = base.RankColumn
	}
	if c.FlagsColumn == "" {
		c.FlagsColumn = base.FlagsColumn
	}
	if c.KeyColumn == "" {
		c.KeyColumn = base.KeyColumn
	}
	if c.SortOnCreate == "" {
		c.SortOnCreate = base.SortOnCreate
	}
	if c.Direction == "" {
		c.Direction = base.Direction
	}
	c.Partition = base.Partition.Merge(c.Partition)
	c.Transactional = c.Transactional || base.Transactional

	return c
}

func (c Config) validate() error {
	if err := validateColumnName(c.RankColumn); err != nil {
		return fmt.Errorf("%w: rank column: %w", ErrInvalidConfig, err)
	}

	if err := validateColumnName(c.KeyColumn); err != nil {
		return fmt.Errorf("%w: key column: %w", ErrInvalidConfig, err)
	}

	if c.FlagsEnabled() {
		if err := validateColumnName(c.FlagsColumn); err != nil {
			return fmt.Errorf("%w: flags column: %w", ErrInvalidConfig, err)
		}
		if c.FlagsColumn == c.RankColumn {
			return fmt.Errorf("%w: flags column equals rank column '%s'", ErrInvalidConfig, c.RankColumn)
		}
	}

	if _, err := ParseSortOnCreate(string(c.SortOnCreate)); err != nil {
		return err
	}

	if _, err := ParseDirection(string(c.Direction)); err != nil {
		return err
	}

	if err := c.Partition.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return nil
}

// normalize resolves defaults and case-insensitive enum spellings.
func (c Config) normalize() (Config, error) {
	c = c.withDefaults(DefaultConfig())
	if err := c.validate(); err != nil {
		return Config{}, err
	}

	if !c.FlagsEnabled() {
		c.FlagsColumn = ""
	}

	c.SortOnCreate, _ = ParseSortOnCreate(string(c.SortOnCreate))
	c.Direction, _ = ParseDirection(string(c.Direction))

	return c, nil
}

// File is the layout of a sortable config file:
//
//	defaults:
//	  rankColumn: weight
//	  sortOnCreate: append
//	collections:
//	  tasks:
//	    flagsColumn: can_sorts
//	    direction: asc
//	  tags:
//	    flagsColumn: none
//	    transactional: false
type File struct {
	Defaults    Config                      `yaml:"defaults"`
	Collections map[string]CollectionConfig `yaml:"collections"`
}

// CollectionConfig is a collection section of a config file. Settings left
// out inherit the defaults section.
type CollectionConfig struct {
	Config

	// transactional is not nil when the section spells it out.
	transactional *bool
}

// UnmarshalYAML - implements yaml.Unmarshaler.
func (c *CollectionConfig) UnmarshalYAML(node *yaml.Node) error {
	var explicit struct {
		Transactional *bool `yaml:"transactional"`
	}
	if err := node.Decode(&explicit); err != nil {
		return err
	}

	if err := node.Decode(&c.Config); err != nil {
		return err
	}
	c.transactional = explicit.Transactional

	return nil
}

// over layers the section over defaults.
func (c CollectionConfig) over(defaults Config) Config {
	ret := c.Config.withDefaults(defaults)
	if c.transactional != nil {
		ret.Transactional = *c.transactional
	}

	return ret
}

// LoadFile reads a YAML config file (if path is not empty) and applies
// SORTABLE_* environment overrides to its defaults section.
func LoadFile(path string) (*File, error) {
	f := new(File)
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}

		f, err = ParseFile(data)
		if err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	f.applyEnvOverrides()

	return f, nil
}

// ParseFile decodes a YAML config file.
func ParseFile(data []byte) (*File, error) {
	f := new(File)
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return f, nil
}

// Collection resolves the config of a collection: its own section over the
// defaults section over DefaultConfig. Unknown collections get the defaults.
func (f *File) Collection(name string) (Config, error) {
	if f == nil {
		return DefaultConfig().normalize()
	}

	return f.Collections[name].over(f.Defaults).normalize()
}

func (f *File) applyEnvOverrides() {
	if v := os.Getenv("SORTABLE_RANK_COLUMN"); v != "" {
		f.Defaults.RankColumn = v
	}
	if v := os.Getenv("SORTABLE_FLAGS_COLUMN"); v != "" {
		f.Defaults.FlagsColumn = v
	}
	if v := os.Getenv("SORTABLE_KEY_COLUMN"); v != "" {
		f.Defaults.KeyColumn = v
	}
	if v := os.Getenv("SORTABLE_SORT_ON_CREATE"); v != "" {
		f.Defaults.SortOnCreate = SortOnCreate(v)
	}
	if v := os.Getenv("SORTABLE_DIRECTION"); v != "" {
		f.Defaults.Direction = Direction(v)
	}
	if v := os.Getenv("SORTABLE_TRANSACTIONAL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Defaults.Transactional = b
		}
	}
}
