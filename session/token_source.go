package session

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/jrsteele09/go-auth-client/token"
	"golang.org/x/oauth2"
)

// TokenSource adapts the manager to oauth2.TokenSource so any oauth2-aware
// HTTP stack (oauth2.NewClient, oauth2.Transport) can draw bearer tokens from
// the session, with refresh handled transparently by the manager.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, manager: m}
}

type managerTokenSource struct {
	ctx     context.Context
	manager *Manager
}

func (ts *managerTokenSource) Token() (*oauth2.Token, error) {
	accessToken, err := ts.manager.ValidAccessToken(ts.ctx)
	if err != nil {
		return nil, err
	}

	oauthToken := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}
	if introspection, err := token.Introspect(accessToken); err == nil && introspection.Exp != nil {
		oauthToken.Expiry = time.Unix(utils.Value(introspection.Exp), 0)
	}
	return oauthToken, nil
}
