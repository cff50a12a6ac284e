package database

import (
	pgxmock "github.com/pashagolub/pgxmock/v3"
)

// NewMockPool creates a pgxmock pool for repository tests. The returned pool
// satisfies DBTX, so it can be passed to any repository or service
// constructor. Call ExpectationsWereMet() at the end of each test.
func NewMockPool() (pgxmock.PgxPoolIface, error) {
	return pgxmock.NewPool()
}
