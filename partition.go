package gosortable

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"gorm.io/gorm"
)

// Partition restricts ranking to a group of records, expressed as column
// equality predicates (e.g. {"category_id": 3}). A nil or empty partition
// spans the whole collection.
type Partition map[string]any

// Merge returns a new partition holding p overridden by other.
func (p Partition) Merge(other Partition) Partition {
	if len(p) == 0 && len(other) == 0 {
		return nil
	}

	ret := make(Partition, len(p)+len(other))
	maps.Copy(ret, p)
	maps.Copy(ret, other)

	return ret
}

// Key returns a stable identity of the partition, e.g. "category_id=3".
// The whole collection is identified by "*".
func (p Partition) Key() string {
	if len(p) == 0 {
		return "*"
	}

	columns := slices.Sorted(maps.Keys(p))
	parts := make([]string, 0, len(columns))
	for _, column := range columns {
		parts = append(parts, fmt.Sprintf("%s=%v", column, p[column]))
	}

	return strings.Join(parts, ",")
}

// Contains reports whether a record described by values belongs to p.
func (p Partition) Contains(values Partition) bool {
	for column, want := range p {
		got, ok := values[column]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}

	return true
}

// Apply applies the partition predicate to a gorm query.
func (p Partition) Apply(db *gorm.DB) *gorm.DB {
	if len(p) == 0 {
		return db
	}

	return db.Where(map[string]any(p))
}

func (p Partition) validate() error {
	for column := range p {
		if err := validateColumnName(column); err != nil {
			return fmt.Errorf("invalid partition: %w", err)
		}
	}

	return nil
}
