// Package dummydb is an in-memory implementation of the repositories, used in tests.
package dummydb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/assignment"
	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
)

type (
	DB struct {
		mu   sync.RWMutex
		txMu sync.Mutex
		tables
	}

	tables struct {
		users              map[string]user.User
		reports            map[string]report.Report
		feedback           map[string]report.Feedback
		reportAssignments  map[string]assignment.ReportAssignment
		studentAssignments map[string]assignment.StudentAssignment
		seq                map[string]int // insertion order, by ID
		next               int
	}

	// txExec stands for the running transaction; the dummy repositories never use it to run SQL.
	txExec struct {
		sqlx.ExtContext
	}
)

var _ core.Transactor = (*DB)(nil)

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() tables {
	return tables{
		users:              make(map[string]user.User),
		reports:            make(map[string]report.Report),
		feedback:           make(map[string]report.Feedback),
		reportAssignments:  make(map[string]assignment.ReportAssignment),
		studentAssignments: make(map[string]assignment.StudentAssignment),
		seq:                make(map[string]int),
	}
}

// newID returns a new UUID and records its insertion order. Callers hold the write lock.
func (t *tables) newID() string {
	id := uuid.NewString()
	t.next++
	t.seq[id] = t.next
	return id
}

// sortedIDs returns ids in insertion order.
func (t *tables) sortedIDs(ids []string) []string {
	sort.Slice(ids, func(i, j int) bool { return t.seq[ids[i]] < t.seq[ids[j]] })
	return ids
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.reports {
		c.reports[k] = v
	}
	for k, v := range t.feedback {
		c.feedback[k] = v
	}
	for k, v := range t.reportAssignments {
		c.reportAssignments[k] = v
	}
	for k, v := range t.studentAssignments {
		c.studentAssignments[k] = v
	}
	for k, v := range t.seq {
		c.seq[k] = v
	}
	c.next = t.next
	return c
}

// Transact serializes transactions and restores the tables as they were when fn fails.
func (db *DB) Transact(_ context.Context, fn func(exec core.DBExecutor) error) (err error) {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.tables.clone()
	db.mu.RUnlock()

	rollback := func() {
		db.mu.Lock()
		db.tables = snapshot
		db.mu.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err = fn(&txExec{}); err != nil {
		rollback()
	}
	return err
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tables = newTables()
}

// filters

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// inOrAll matches val against vals: nil vals match everything, empty ones nothing.
func inOrAll(vals []string, val string) bool {
	return vals == nil || core.ContainsString(vals, val)
}

// ordering

type fieldGetter func(i int, field string) (interface{}, bool)

// sortBy sorts n items by the given ordering, using get to read field values.
func sortBy(n int, swap func(i, j int), get fieldGetter, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		return
	}
	sort.Stable(&sorter{n: n, swap: swap, less: func(i, j int) bool {
		for _, ord := range ordering {
			a, ok := get(i, ord.Field)
			b, _ := get(j, ord.Field)
			if !ok {
				continue
			}
			c := compare(a, b)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	}})
}

type sorter struct {
	n    int
	swap func(i, j int)
	less func(i, j int) bool
}

func (s *sorter) Len() int           { return s.n }
func (s *sorter) Less(i, j int) bool { return s.less(i, j) }
func (s *sorter) Swap(i, j int)      { s.swap(i, j) }

func compare(a, b interface{}) int {
	switch av := a.(type) {
	case string:
		bv := b.(string)
		return strings.Compare(strings.ToLower(av), strings.ToLower(bv))
	case time.Time:
		bv := b.(time.Time)
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
	}
	return 0
}

