/*
Package randx provides cryptographically secure random helpers.

It picks the initial profile color for new accounts and builds opaque channel identifiers.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// ProfilePalette is the set of colors a new account can be assigned.
var ProfilePalette = []string{
	"#3498db", "#e74c3c", "#2ecc71", "#9b59b6",
	"#f1c40f", "#1abc9c", "#e67e22", "#34495e",
}

// ProfileColor returns a random color from ProfilePalette.
func ProfileColor() (string, error) {
	num, err := rand.Int(rand.Reader, big.NewInt(int64(len(ProfilePalette))))
	if err != nil {
		return "", fmt.Errorf("failed to generate random number for profile color: %w", err)
	}

	return ProfilePalette[num.Int64()], nil
}

// ChannelID returns a new unique identifier for a live connection.
func ChannelID() string {
	return uuid.NewString()
}
