/*
Package user contains the identity record shared by the chat core and the account endpoints.

The chat core only reads users; accounts are created and edited by the REST handlers.
*/
package user

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultColor is the profile color assigned when none has been chosen.
const DefaultColor = "#3498db"

// ErrNotFound is returned by stores when no user has the requested id or email.
var ErrNotFound = errors.New("user not found")

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// User is the public identity of an account.
type User struct {
	// ID is the stable, immutable account identifier.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Color is the display color used to render the user's messages.
	Color string `json:"color"`
}

// Account is a User plus the credentials only the account endpoints touch.
type Account struct {
	User
	Email        string
	PasswordHash string
}

// ValidColor reports whether c is a #RRGGBB color.
func ValidColor(c string) bool {
	return colorPattern.MatchString(c)
}

// NormalizeColor lower-cases a valid color so equal colors compare equal.
func NormalizeColor(c string) string {
	return strings.ToLower(c)
}
