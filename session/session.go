package session

import "github.com/jrsteele09/go-auth-client/identity"

// State is the session lifecycle state.
type State string

const (
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
	StateRefreshing    State = "refreshing"
)

// Session holds the credentials and cached profile for the current user.
// AccessToken and Identity are set together or not at all; a record missing
// either is treated as no session.
type Session struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	Identity     identity.Identity `json:"identity"`
}

// Complete reports whether the record is a usable session: an access token and
// an identity present together.
func (s *Session) Complete() bool {
	return s != nil && s.AccessToken != "" && s.Identity.Email != ""
}
