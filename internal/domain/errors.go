package domain

import (
	"errors"
	"sort"
	"strings"
)

// ErrTicketClosed is returned when a note is appended to a Closed ticket.
var ErrTicketClosed = errors.New("ticket is closed")

// ValidationError lists the input fields that failed validation.
type ValidationError struct {
	Fields map[string]any
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid " + strings.Join(names, ", ")
}
