package core

import (
	"context"

	"github.com/jmoiron/sqlx"
)

const DefaultPageSize = 20

type (
	// DBExecutor is satisfied by both *sqlx.DB and *sqlx.Tx.
	DBExecutor interface {
		sqlx.ExtContext
	}

	// Transactor runs fn inside a single database transaction.
	// The transaction is committed when fn returns nil and rolled back otherwise.
	Transactor interface {
		Transact(ctx context.Context, fn func(exec DBExecutor) error) error
	}
)

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// FilterOrdering drops the orderings on fields that are not allowed.
func FilterOrdering(ordering []DBOrdering, allowed ...string) []DBOrdering {
	var kept []DBOrdering
	for _, ord := range ordering {
		for _, fld := range allowed {
			if ord.Field == fld {
				kept = append(kept, ord)
				break
			}
		}
	}
	return kept
}

// Page selects a window of a query result. The zero value means no pagination.
type Page struct {
	Number int
	Size   int
}

func (p Page) IsZero() bool { return p.Number <= 0 || p.Size <= 0 }

func (p Page) Limit() int { return p.Size }

func (p Page) Offset() int {
	if p.IsZero() {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// Bounds returns the slice bounds of the page within `total` items, like LIMIT/OFFSET would.
func (p Page) Bounds(total int) (start, end int) {
	if p.IsZero() {
		return 0, total
	}
	start = p.Offset()
	if start > total {
		start = total
	}
	end = start + p.Size
	if end > total {
		end = total
	}
	return start, end
}
