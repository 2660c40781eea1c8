package gosortable

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var _sqlMockFnList = []func() (string, *gorm.DB, sqlmock.Sqlmock, error){
	newGORMMySQLMock,
	newGORMPostgresMock,
}

func newGORMMySQLMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      mockDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		return "", nil, nil, err
	}

	return "mysql", db.Debug(), mock, nil
}

func newGORMPostgresMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	db, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		return "", nil, nil, err
	}

	return "postgres", db.Debug(), mock, nil
}

var _placeholder = regexp.MustCompile(`\?`)

// expectSQL renders a mysql flavoured query for the dialect and turns it
// into an anchored sqlmock pattern.
func expectSQL(dialect, query string) string {
	if dialect == "postgres" {
		query = strings.ReplaceAll(query, "`", `"`)

		n := 0
		query = _placeholder.ReplaceAllStringFunc(query, func(string) string {
			n++
			return fmt.Sprintf("$%d", n)
		})
	}

	return "^" + regexp.QuoteMeta(query) + "$"
}

// tTask is the gorm model used by sqlmock tests.
type tTask struct {
	ID         int64
	Weight     int64
	CanSorts   MoveFlags
	CategoryID int64
}

func (tTask) TableName() string {
	return "tasks"
}

func (t *tTask) GetKey() int64            { return t.ID }
func (t *tTask) GetRank() int64           { return t.Weight }
func (t *tTask) SetRank(rank int64)       { t.Weight = rank }
func (t *tTask) GetMoveFlags() MoveFlags  { return t.CanSorts }
func (t *tTask) SetMoveFlags(f MoveFlags) { t.CanSorts = f }
func (t *tTask) SortPartition() Partition { return Partition{"category_id": t.CategoryID} }

var _taskColumns = []string{"id", "weight", "can_sorts", "category_id"}

func taskRows(tasks ...tTask) *sqlmock.Rows {
	rows := sqlmock.NewRows(_taskColumns)
	for _, t := range tasks {
		rows.AddRow(t.ID, t.Weight, int64(t.CanSorts), t.CategoryID)
	}

	return rows
}

// tItem is the record used by MemoryStore tests.
type tItem struct {
	ID     int64
	Weight int64
	Flags  MoveFlags
	Group  string
}

func (i *tItem) GetKey() int64            { return i.ID }
func (i *tItem) GetRank() int64           { return i.Weight }
func (i *tItem) SetRank(rank int64)       { i.Weight = rank }
func (i *tItem) GetMoveFlags() MoveFlags  { return i.Flags }
func (i *tItem) SetMoveFlags(f MoveFlags) { i.Flags = f }

func (i *tItem) SortPartition() Partition {
	if i.Group == "" {
		return nil
	}

	return Partition{"group": i.Group}
}

func items(group string, ranks ...int64) []*tItem {
	ret := make([]*tItem, 0, len(ranks))
	for i, rank := range ranks {
		ret = append(ret, &tItem{ID: int64(i + 1), Weight: rank, Group: group})
	}

	return ret
}
