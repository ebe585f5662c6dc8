package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxAttachmentsPerNote caps the attachments a single note may carry.
const MaxAttachmentsPerNote = 5

// Note is one append-only entry in a ticket thread.
type Note struct {
	ID          string
	Text        string
	Attachments []Attachment
	CreatedBy   string
	CreatedAt   time.Time
}

// Attachment stores metadata for a file attached to a note.
// The bytes live elsewhere; Reference locates them.
type Attachment struct {
	Filename  string
	Reference string
	MediaType string
}

// Validate checks note input before it is appended.
func (n Note) Validate() error {
	fields := map[string]any{}
	if strings.TrimSpace(n.Text) == "" {
		fields["text"] = "required"
	}
	if strings.TrimSpace(n.CreatedBy) == "" {
		fields["createdBy"] = "required"
	}
	if len(n.Attachments) > MaxAttachmentsPerNote {
		fields["attachments"] = fmt.Sprintf("at most %d allowed, got %d", MaxAttachmentsPerNote, len(n.Attachments))
	}
	for i, att := range n.Attachments {
		if strings.TrimSpace(att.Filename) == "" {
			fields[fmt.Sprintf("attachments[%d].filename", i)] = "required"
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
