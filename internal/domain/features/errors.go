package features

import "errors"

// ErrSchemaMismatch is returned when a row does not fit the schema it is
// checked against.
var ErrSchemaMismatch = errors.New("feature schema mismatch")
