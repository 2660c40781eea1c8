package gosortable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// GormStore implements Store on top of gorm for records of model M.
//
// Single-row updates are Unscoped, so renumbering by key also reaches
// soft-deleted rows. Aggregates, listings and bulk shifts keep the default
// scopes.
type GormStore[K comparable, M any] struct {
	db          *gorm.DB
	table       string
	selectQuery string
	keyColumn   string
	scopes      []func(*gorm.DB) *gorm.DB
}

func NewGormStore[K comparable, M any](db *gorm.DB) *GormStore[K, M] {
	return &GormStore[K, M]{
		db:        db,
		keyColumn: DefaultKeyColumn,
	}
}

// WithTable overrides the table name derived from M.
func (s *GormStore[K, M]) WithTable(table string) *GormStore[K, M] {
	if s == nil {
		s = new(GormStore[K, M])
	}

	s.table = table

	return s
}

// WithSelect sets the select list used when loading records, e.g.
// "task_id AS id, position AS weight" to map foreign column names onto M.
func (s *GormStore[K, M]) WithSelect(query string) *GormStore[K, M] {
	if s == nil {
		s = new(GormStore[K, M])
	}

	s.selectQuery = query

	return s
}

// WithKeyColumn sets the primary key column. Defaults to "id".
func (s *GormStore[K, M]) WithKeyColumn(column string) *GormStore[K, M] {
	if s == nil {
		s = new(GormStore[K, M])
	}

	s.keyColumn = column

	return s
}

// WithScopes appends gorm scopes applied to every query.
func (s *GormStore[K, M]) WithScopes(scopes ...func(*gorm.DB) *gorm.DB) *GormStore[K, M] {
	if s == nil {
		s = new(GormStore[K, M])
	}

	s.scopes = append(s.scopes, scopes...)

	return s
}

// WithDB returns a copy of the store bound to db, typically a transaction
// handed to a gorm hook.
func (s *GormStore[K, M]) WithDB(db *gorm.DB) *GormStore[K, M] {
	ret := *s
	ret.db = db

	return &ret
}

// DB returns the underlying gorm handle.
func (s *GormStore[K, M]) DB() *gorm.DB {
	return s.db
}

func (s *GormStore[K, M]) query(ctx context.Context, p Partition) *gorm.DB {
	db := s.db.WithContext(ctx).Model(new(M))
	if s.table != "" {
		db = db.Table(s.table)
	}

	return p.Apply(db.Scopes(s.scopes...))
}

func (s *GormStore[K, M]) keyEquals() string {
	return fmt.Sprintf("%s = ?", s.keyColumn)
}

func (s *GormStore[K, M]) aggregate(ctx context.Context, p Partition, fn, column string) (int64, error) {
	if err := validateColumnName(column); err != nil {
		return 0, err
	}

	var ret sql.NullInt64
	err := s.query(ctx, p).Select(fmt.Sprintf("%s(%s)", fn, column)).Scan(&ret).Error
	if err != nil {
		return 0, fmt.Errorf("cannot query %s(%s): %w", fn, column, err)
	}

	return ret.Int64, nil
}

// Max - implements Store.
func (s *GormStore[K, M]) Max(ctx context.Context, p Partition, column string) (int64, error) {
	return s.aggregate(ctx, p, "MAX", column)
}

// Min - implements Store.
func (s *GormStore[K, M]) Min(ctx context.Context, p Partition, column string) (int64, error) {
	return s.aggregate(ctx, p, "MIN", column)
}

// Ordered - implements Store.
func (s *GormStore[K, M]) Ordered(
	ctx context.Context,
	p Partition,
	column string,
	cond *RankCondition,
	direction Direction,
	limit int,
) ([]*M, error) {
	orderings := rankOrderings(column, s.keyColumn, direction)
	if err := orderings.validate(); err != nil {
		return nil, err
	}

	db := s.query(ctx, p)
	if s.selectQuery != "" {
		db = db.Select(s.selectQuery)
	}

	if cond != nil {
		if err := cond.validate(); err != nil {
			return nil, err
		}
		db = db.Clauses(cond.toGORMExpression(column))
	}

	db = orderings.Apply(db)
	if limit != NoLimit {
		db = db.Limit(limit)
	}

	var ret []*M
	if err := db.Find(&ret).Error; err != nil {
		return nil, fmt.Errorf("cannot list records: %w", err)
	}

	return ret, nil
}

// After - implements Store.
func (s *GormStore[K, M]) After(
	ctx context.Context,
	p Partition,
	column string,
	direction Direction,
	rank int64,
	key K,
	limit int,
) ([]*M, error) {
	orderings := rankOrderings(column, s.keyColumn, direction)
	if err := orderings.validate(); err != nil {
		return nil, err
	}

	operator := direction.ForOperator()
	dnf := inflateDNF([]tConjunct{
		{Column: column, Operator: operator, Value: rank},
		{Column: s.keyColumn, Operator: operator, Value: key},
	})

	db := s.query(ctx, p)
	if s.selectQuery != "" {
		db = db.Select(s.selectQuery)
	}

	db = orderings.Apply(db.Clauses(dnf.toGORMExpression()))
	if limit != NoLimit {
		db = db.Limit(limit)
	}

	var ret []*M
	if err := db.Find(&ret).Error; err != nil {
		return nil, fmt.Errorf("cannot list records after %v: %w", key, err)
	}

	return ret, nil
}

// Find - implements Store.
func (s *GormStore[K, M]) Find(ctx context.Context, p Partition, key K) (*M, error) {
	db := s.query(ctx, p)
	if s.selectQuery != "" {
		db = db.Select(s.selectQuery)
	}

	ret := new(M)
	err := db.Where(s.keyEquals(), key).Take(ret).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s = %v", ErrNotFound, s.keyColumn, key)
	} else if err != nil {
		return nil, fmt.Errorf("cannot load record %v: %w", key, err)
	}

	return ret, nil
}

// UpdateColumn - implements Store.
func (s *GormStore[K, M]) UpdateColumn(ctx context.Context, p Partition, key K, column string, value any) error {
	return s.UpdateColumnBy(ctx, p, s.keyColumn, key, column, value)
}

// UpdateColumnBy - implements Store.
func (s *GormStore[K, M]) UpdateColumnBy(
	ctx context.Context,
	p Partition,
	match string,
	matchValue any,
	column string,
	value any,
) error {
	if err := validateColumnName(match); err != nil {
		return err
	}

	err := s.query(ctx, p).
		Unscoped().
		Where(fmt.Sprintf("%s = ?", match), matchValue).
		UpdateColumn(column, value).Error
	if err != nil {
		return fmt.Errorf("cannot update %s where %s = %v: %w", column, match, matchValue, err)
	}

	return nil
}

// Increment - implements Store.
func (s *GormStore[K, M]) Increment(
	ctx context.Context,
	p Partition,
	exclude K,
	column string,
	cond RankCondition,
	delta int64,
) (int64, error) {
	if err := validateColumnName(column); err != nil {
		return 0, err
	}

	if err := cond.validate(); err != nil {
		return 0, err
	}

	res := s.query(ctx, p).
		Where(fmt.Sprintf("%s <> ?", s.keyColumn), exclude).
		Clauses(cond.toGORMExpression(column)).
		UpdateColumn(column, gorm.Expr(fmt.Sprintf("%s + ?", column), delta))
	if res.Error != nil {
		return 0, fmt.Errorf("cannot shift %s by %d: %w", column, delta, res.Error)
	}

	return res.RowsAffected, nil
}

// UpdateExcluding - implements Store.
func (s *GormStore[K, M]) UpdateExcluding(
	ctx context.Context,
	p Partition,
	exclude []K,
	column string,
	value any,
) (int64, error) {
	db := s.query(ctx, p)
	if len(exclude) > 0 {
		db = db.Where(fmt.Sprintf("%s NOT IN ?", s.keyColumn), exclude)
	} else {
		db = db.Where("1 = 1")
	}

	res := db.UpdateColumn(column, value)
	if res.Error != nil {
		return 0, fmt.Errorf("cannot update %s: %w", column, res.Error)
	}

	return res.RowsAffected, nil
}

// Create - implements Creator.
func (s *GormStore[K, M]) Create(ctx context.Context, rec *M) error {
	db := s.db.WithContext(ctx)
	if s.table != "" {
		db = db.Table(s.table)
	}

	return db.Create(rec).Error
}

// Transaction - implements Store.
func (s *GormStore[K, M]) Transaction(ctx context.Context, fn func(Store[K, *M]) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.WithDB(tx))
	})
}

// OrderedScope lists a query head first for the given rank column and
// listing direction, ties broken by keyColumn.
//
// Usage:
//
//	db.Scopes(gosortable.OrderedScope("weight", "id", gosortable.DirectionDESC)).Find(&tasks)
func OrderedScope(rankColumn, keyColumn string, direction Direction) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		orderings := rankOrderings(rankColumn, keyColumn, direction)
		if err := orderings.validate(); err != nil {
			_ = db.AddError(err)
			return db
		}

		return orderings.Apply(db)
	}
}

var (
	_ Store[int64, *struct{}] = (*GormStore[int64, struct{}])(nil)
	_ Creator[*struct{}]      = (*GormStore[int64, struct{}])(nil)
)
