package domain

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID   string
	Role Role
}

// ActorFor builds the actor for a loaded user.
func ActorFor(u *User) Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
