package persistence

import "errors"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")
