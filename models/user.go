package models

import (
	"strings"
	"time"
)

// User is an authenticated user of the planning tool, upserted from the
// identity provider's claims on login. Only attribution data is kept here.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName returns the short attribution form shown in history views,
// e.g. "Marie D." for "Marie Dupont". Falls back to the email, then the id.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		if u.Email != "" {
			return u.Email
		}
		return u.ID
	}
	parts := strings.Fields(name)
	if len(parts) == 1 {
		return parts[0]
	}
	initial := []rune(parts[len(parts)-1])[0]
	return parts[0] + " " + strings.ToUpper(string(initial)) + "."
}
