package storefakes

import (
	"sync"

	"github.com/jrsteele09/go-auth-client/session"
)

var _ session.Store = (*FakeSessionStore)(nil)

// FakeSessionStore is an in-memory Store for tests. PutCount and ClearCount
// let tests assert on write traffic.
type FakeSessionStore struct {
	lock       sync.RWMutex
	current    *session.Session
	PutCount   int
	ClearCount int

	// GetErr / PutErr, when set, are returned by the corresponding method
	GetErr error
	PutErr error
}

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{}
}

func (fs *FakeSessionStore) Get() (*session.Session, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()

	if fs.GetErr != nil {
		return nil, fs.GetErr
	}
	if fs.current == nil {
		return nil, nil
	}
	copied := *fs.current
	return &copied, nil
}

func (fs *FakeSessionStore) Put(s *session.Session) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	if fs.PutErr != nil {
		return fs.PutErr
	}
	copied := *s
	fs.current = &copied
	fs.PutCount++
	return nil
}

func (fs *FakeSessionStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	fs.current = nil
	fs.ClearCount++
	return nil
}
