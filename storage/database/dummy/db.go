package dummydb

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/category"
	"github.com/trezcool/alama/core/course"
)

// DB is an in-memory stand-in for the real database, for tests. Transactions
// are no-ops: mutations apply immediately and never roll back.
type DB struct {
	noopExecutor

	course    *courseTable
	weighting *weightingTable
	item      *itemTable
	category  *categoryTable
}

type (
	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}

	// weightings are stored per course; replace-all is the only write
	weightingTable struct {
		sync.RWMutex
		table map[string][]course.Weighting
	}

	itemTable struct {
		sync.RWMutex
		table map[string]*course.GradedItem
		seq   map[string]int // insertion order, for deterministic listings
		next  int
	}

	categoryTable struct {
		sync.RWMutex
		table map[string]*category.Category
	}
)

var _ core.DB = (*DB)(nil)

func Open() (*DB, error) {
	db := &DB{
		course:    &courseTable{table: make(map[string]*course.Course)},
		weighting: &weightingTable{table: make(map[string][]course.Weighting)},
		item:      &itemTable{table: make(map[string]*course.GradedItem), seq: make(map[string]int)},
		category:  &categoryTable{table: make(map[string]*category.Category)},
	}
	return db, nil
}

func (db *DB) BeginTx(context.Context, *sql.TxOptions) (core.DBTransactor, error) {
	return &noopTx{}, nil
}

type noopTx struct {
	noopExecutor
}

func (*noopTx) Commit() error   { return nil }
func (*noopTx) Rollback() error { return nil }

// noopExecutor fails every raw SQL call; dummy repositories never issue any.
type noopExecutor struct{}

var errNoSQL = errors.New("dummydb: raw SQL not supported")

func (noopExecutor) Exec(string, ...interface{}) (sql.Result, error) { return nil, errNoSQL }
func (noopExecutor) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}
func (noopExecutor) Query(string, ...interface{}) (*sql.Rows, error) { return nil, errNoSQL }
func (noopExecutor) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}
func (noopExecutor) QueryRow(string, ...interface{}) *sql.Row                   { return nil }
func (noopExecutor) QueryRowContext(context.Context, string, ...interface{}) *sql.Row { return nil }
