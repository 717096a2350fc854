package metadata

import "errors"

var (
	// ErrMetadataCorrupt is returned when a stored row fails to decode
	// (malformed tags JSON, wrong-length content_key, etc).
	ErrMetadataCorrupt = errors.New("metadata: corrupt row")
	// ErrMetadataFull is returned when the store refuses a write because
	// its configured size ceiling has been reached.
	ErrMetadataFull = errors.New("metadata: store full")
	// ErrConstraintViolation wraps a sqlite constraint failure other than
	// the well-known name-uniqueness case.
	ErrConstraintViolation = errors.New("metadata: constraint violation")
	// ErrNameAlreadyExists is returned by RegisterName for a name already
	// bound to a content_key under the same owner identity.
	ErrNameAlreadyExists = errors.New("metadata: name already exists")
	// ErrUnknownFile is returned when a content_key has no file row.
	ErrUnknownFile = errors.New("metadata: unknown file")
	// ErrUnknownName is returned when a name has no entry.
	ErrUnknownName = errors.New("metadata: unknown name")
)
