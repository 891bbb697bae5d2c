// Package identity implements the bearer-token collaborator: issuing and
// decoding the access tokens that stand in for member authentication.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer = "livechat"

	errorMessageMissingTokenSecret = "identity: missing token secret"
	errorMessageInvalidToken       = "identity: invalid access token"
)

var (
	// ErrMissingTokenSecret indicates the signing secret configuration was omitted.
	ErrMissingTokenSecret = errors.New(errorMessageMissingTokenSecret)
	// ErrInvalidToken indicates the access token is absent, malformed, expired, or forged.
	ErrInvalidToken = errors.New(errorMessageInvalidToken)
)

type memberClaims struct {
	MemberID uint64 `json:"member_id"`
	jwt.RegisteredClaims
}

// Codec signs and verifies member access tokens with a shared HS256 secret.
type Codec struct {
	secret []byte
}

// NewCodec creates a Codec from the configured signing secret.
func NewCodec(secret string) (*Codec, error) {
	trimmedSecret := strings.TrimSpace(secret)
	if trimmedSecret == "" {
		return nil, ErrMissingTokenSecret
	}
	return &Codec{secret: []byte(trimmedSecret)}, nil
}

// IssueMemberToken mints a signed access token for the member.
func (codec *Codec) IssueMemberToken(memberID uint64, timeToLive time.Duration) (string, error) {
	now := time.Now()
	claims := memberClaims{
		MemberID: memberID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(timeToLive)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, signErr := token.SignedString(codec.secret)
	if signErr != nil {
		return "", fmt.Errorf("identity: sign token: %w", signErr)
	}
	return signed, nil
}

// DecodeMemberID verifies the access token and returns the member id it carries.
func (codec *Codec) DecodeMemberID(accessToken string) (uint64, error) {
	trimmedToken := strings.TrimSpace(accessToken)
	if trimmedToken == "" {
		return 0, ErrInvalidToken
	}

	parsedToken, parseErr := jwt.ParseWithClaims(trimmedToken, &memberClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return codec.secret, nil
	})
	if parseErr != nil || !parsedToken.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := parsedToken.Claims.(*memberClaims)
	if !ok || claims.MemberID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.MemberID, nil
}
