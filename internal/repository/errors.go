package repository

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrStaleStatus is returned when a guarded status update matched no row
	// because another writer changed the status first.
	ErrStaleStatus = errors.New("transaction status changed since it was read")
	// ErrLedgerOutOfOrder is returned when an event's predecessor status does
	// not match the last event recorded for the transaction.
	ErrLedgerOutOfOrder = errors.New("approval event does not follow the last recorded status")
)

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	// go-sqlite3 reports constraint failures by message.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
