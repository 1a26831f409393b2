package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a ULID string for a new user. ULIDs sort by creation time,
// so the user_id GSI stays append-friendly.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
