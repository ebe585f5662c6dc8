package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewNoteID returns a lexicographically sortable identifier for notes.
func NewNoteID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewTicketID returns a random ticket identifier.
func NewTicketID() string {
	return uuid.NewString()
}

// NewStorageReference returns an opaque key for an uploaded attachment.
func NewStorageReference(filename string) string {
	return "attachments/" + uuid.NewString() + "/" + filename
}

// NewUserID returns a random user identifier.
func NewUserID() string {
	return uuid.NewString()
}
