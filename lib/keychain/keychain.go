// Package keychain signs and verifies the opaque credential blobs stored
// next to user records. The rest of the codebase only ever sees the blob or
// the decoded Credentials, never the signing key.
package keychain

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials is a resolved portal login.
type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) IsZero() bool {
	return c.Email == "" && c.Password == ""
}

var ErrInvalidBlob = fmt.Errorf("credential blob failed verification")

type Codec struct {
	secret []byte
}

func NewCodec(secret []byte) Codec {
	return Codec{secret: secret}
}

type claims struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	jwt.RegisteredClaims
}

func (c Codec) Sign(creds Credentials) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email:    creds.Email,
		Password: creds.Password,
	})
	return token.SignedString(c.secret)
}

// Verify decodes a signed blob back into credentials. An empty blob is not
// an error, it decodes to zero Credentials so callers can treat "no
// credentials stored" uniformly.
func (c Codec) Verify(blob string) (Credentials, error) {
	if blob == "" {
		return Credentials{}, nil
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(blob, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}

	return Credentials{
		Email:    parsed.Email,
		Password: parsed.Password,
	}, nil
}
