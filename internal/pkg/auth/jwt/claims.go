package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims issued to a signed-in account.
// Only the stable identity lives in the token; display attributes are re-read from
// storage when the token is verified so a profile change takes effect on next use.
type Payload struct {
	// StandardClaims embeds Exp, Iat and Iss.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the account identifier.
	ID string `json:"id"`

	// Name is the display name at issue time, informational only.
	Name string `json:"name,omitempty"`
}
