package sessionfakes

import (
	"context"
	"sync/atomic"

	"github.com/jrsteele09/go-auth-client/identity"
)

// FakeIdentityAPI is a hand-rolled fake of the manager's identity API
// dependency. RefreshStarted/ReleaseRefresh let tests hold a refresh in
// flight to exercise coalescing and stale-result discard.
type FakeIdentityAPI struct {
	RefreshCredentials *identity.Credentials
	RefreshErr         error

	RefreshStarted chan struct{} // closed-on-first-call notification, optional
	ReleaseRefresh chan struct{} // refresh blocks until this closes, optional

	refreshCalls int32
	logoutCalls  int32

	startedOnce atomic.Bool
}

func NewFakeIdentityAPI() *FakeIdentityAPI {
	return &FakeIdentityAPI{}
}

func (f *FakeIdentityAPI) Refresh(ctx context.Context, refreshToken string) (*identity.Credentials, error) {
	atomic.AddInt32(&f.refreshCalls, 1)
	if f.RefreshStarted != nil && f.startedOnce.CompareAndSwap(false, true) {
		close(f.RefreshStarted)
	}
	if f.ReleaseRefresh != nil {
		<-f.ReleaseRefresh
	}
	if f.RefreshErr != nil {
		return nil, f.RefreshErr
	}
	return f.RefreshCredentials, nil
}

func (f *FakeIdentityAPI) Logout(ctx context.Context, accessToken string) error {
	atomic.AddInt32(&f.logoutCalls, 1)
	return nil
}

func (f *FakeIdentityAPI) RefreshCalls() int {
	return int(atomic.LoadInt32(&f.refreshCalls))
}

func (f *FakeIdentityAPI) LogoutCalls() int {
	return int(atomic.LoadInt32(&f.logoutCalls))
}
