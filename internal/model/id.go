package model

import "github.com/oklog/ulid/v2"

// NewID returns a new ULID string used to identify a solver run.
func NewID() string {
	return ulid.Make().String()
}
