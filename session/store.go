package session

// Store defines the interface for durable session storage. The persisted copy
// is the source of truth across restarts; the manager's in-memory state is a
// cache of it.
//
// All credential fields are written and cleared as one group - implementations
// must not expose a state where only some fields are updated.
type Store interface {
	// Get retrieves the stored session, or (nil, nil) when none is stored
	Get() (*Session, error)

	// Put atomically replaces the stored session
	Put(session *Session) error

	// Clear removes the stored session. Clearing an empty store is not an error
	Clear() error
}
