package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

type fixture struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
	svc        *TicketService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	var mu sync.Mutex
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		at = at.Add(time.Second)
		return at
	}
	tickets := repository.NewMemoryTicketRepository(clock)
	users := repository.NewMemoryUserRepository(clock)
	dispatcher := events.NewInMemoryDispatcher()
	return &fixture{
		tickets:    tickets,
		users:      users,
		dispatcher: dispatcher,
		svc: NewTicketService(TicketDependencies{
			TicketRepo: tickets,
			UserRepo:   users,
			Dispatcher: dispatcher,
		}),
	}
}

func (f *fixture) addUser(t *testing.T, name string, role domain.Role) domain.Actor {
	t.Helper()
	user := &domain.User{Name: name, Email: name + "@example.com", PasswordHash: "x", Role: role}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return domain.ActorFor(user)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}
