package service

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// Person is the directory entry shown next to a ticket owner or note author.
type Person struct {
	ID    string
	Name  string
	Email string
	Role  domain.Role
}

// People maps user ids to directory entries.
type People map[string]Person

// Get returns the entry for id. Users missing from the directory come back
// with only their id set.
func (p People) Get(id string) Person {
	if person, ok := p[id]; ok {
		return person
	}
	return Person{ID: id}
}

// resolvePeople looks up every ticket owner and note author once.
func resolvePeople(ctx context.Context, users repository.UserRepository, tickets ...*domain.Ticket) (People, error) {
	people := People{}
	if users == nil {
		return people, nil
	}
	lookup := func(id string) error {
		if _, ok := people[id]; ok || id == "" {
			return nil
		}
		user, err := users.GetByID(ctx, id)
		if err != nil {
			if apperrors.HasCode(err, apperrors.CodeNotFound) {
				people[id] = Person{ID: id}
				return nil
			}
			return apperrors.MapError(err)
		}
		people[id] = Person{ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}
		return nil
	}
	for _, ticket := range tickets {
		if ticket == nil {
			continue
		}
		if err := lookup(ticket.CustomerID); err != nil {
			return nil, err
		}
		for _, note := range ticket.Notes {
			if err := lookup(note.CreatedBy); err != nil {
				return nil, err
			}
		}
	}
	return people, nil
}
