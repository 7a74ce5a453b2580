package catalog

import "errors"

var (
	// ErrNotFound is returned when a plugin, author or category does not exist
	ErrNotFound = errors.New("not found")

	// ErrVersionNotFound is returned when a plugin exists but the requested version does not
	ErrVersionNotFound = errors.New("could not find version")

	// ErrInvalidQuery is returned for search filters the query engine rejects
	ErrInvalidQuery = errors.New("invalid search")
)
