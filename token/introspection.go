package token

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/internal/utils"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Introspection represents the claims a client can read out of an access token
// without a verification key. The 'active' field indicates whether the token is
// usable right now - if it's false, other fields may not be populated.
//
// The client never verifies signatures: it holds no key material, and the
// server re-verifies every request anyway. A token that cannot be decoded is
// reported as inactive rather than returned to the caller.
type Introspection struct {
	Active    bool     `json:"active"`               // True or false - Is the token usable
	Exp       *int64   `json:"exp,omitempty"`        // Expiration
	Iat       *int64   `json:"iat,omitempty"`        // Issued at time
	Iss       *string  `json:"iss,omitempty"`        // Issuer of the token
	Sub       *string  `json:"sub,omitempty"`        // Users unique ID
	Email     string   `json:"email,omitempty"`      // Email claim, if present
	FirstName string   `json:"given_name,omitempty"` // Given name claim, if present
	LastName  string   `json:"family_name,omitempty"`
	Roles     []string `json:"roles,omitempty"` // Roles assigned to the User
}

// Introspect extracts claims from an access token without verifying its
// signature and determines whether it has expired.
func Introspect(rawToken string) (*Introspection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &Introspection{Active: false}, nil
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return &Introspection{Active: false}, err
	}

	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return &Introspection{Active: false}, errors.New("error extracting claims")
	}

	iss, _ := claims["iss"].(string)
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	firstName, _ := claims["given_name"].(string)
	lastName, _ := claims["family_name"].(string)
	iat, _ := claims["iat"].(float64)

	exp, ok := claims["exp"].(float64)
	if !ok {
		// A token without a readable expiry is never returned to callers.
		return &Introspection{Active: false}, errors.New("token missing exp claim")
	}

	iatInt := int64(iat)
	expInt := int64(exp)

	var roles []string
	if claimRoles, ok := claims["roles"].([]any); ok {
		roles = utils.ToStringSlice(claimRoles)
	}

	active := NowTimeFunc().Unix() < expInt

	return &Introspection{
		Active:    active,
		Exp:       &expInt,
		Iat:       &iatInt,
		Iss:       &iss,
		Sub:       &sub,
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Roles:     roles,
	}, nil
}

// Expired reports whether the token is past its expiry claim. Malformed tokens
// are treated as expired.
func Expired(rawToken string) bool {
	introspection, err := Introspect(rawToken)
	if err != nil {
		return true
	}
	return !introspection.Active
}
