package postgres

import (
	"context"

	"gorm.io/gorm"
)

// baseRepository carries the shared connection and the tx-or-default
// selection every repository method starts with.
type baseRepository struct {
	db *gorm.DB
}

// getDB returns the transaction handle when one was passed in, otherwise
// the pooled connection, both scoped to ctx.
func (r *baseRepository) getDB(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

// applySort orders the query with SQL injection protection: only whitelisted
// columns reach the ORDER BY, anything else falls back to the default.
func applySort(query *gorm.DB, sortBy, sortOrder, defaultColumn string, allowed map[string]bool) *gorm.DB {
	if sortBy == "" || !allowed[sortBy] {
		sortBy = defaultColumn
	}
	if sortOrder == "desc" || sortOrder == "DESC" {
		sortOrder = "DESC"
	} else {
		sortOrder = "ASC"
	}
	return query.Order(sortBy + " " + sortOrder)
}
