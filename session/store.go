// Package session owns the process-wide authentication state. The
// Store is the single owner of that state: it is the only component
// that mutates it, every other component reads it through State or
// subscribes to transitions.
package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/compareai/compare-client/cache"
	"github.com/compareai/compare-client/identity"
	errs "github.com/compareai/compare-client/internal/errors"
)

// State is the three-valued authentication status
type State int

const (
	// StateUnknown is the initial state before the first identity
	// check resolves. It must never be treated as logged out.
	StateUnknown State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	}
	return "invalid"
}

// Subscriber observes session state transitions
type Subscriber func(state State, ident *identity.Identity)

// Store holds the current authenticated identity (or none) and exposes
// load/login/register/logout operations backed by the remote identity
// service through the data cache.
type Store struct {
	mu          sync.Mutex
	state       State
	ident       *identity.Identity
	subscribers []Subscriber

	service IdentityService
	cache   *cache.Store
}

// New initializes a Store with required dependencies
func New(service IdentityService, dataCache *cache.Store) (*Store, error) {
	if service == nil {
		return nil, errors.New("[session.New] identity service is required")
	}
	if dataCache == nil {
		return nil, errors.New("[session.New] data cache is required")
	}
	return &Store{
		state:   StateUnknown,
		service: service,
		cache:   dataCache,
	}, nil
}

// State returns the current session state and a copy of the identity
// (nil unless authenticated)
func (s *Store) State() (State, *identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, copyIdentity(s.ident)
}

// Subscribe registers fn to be called on every state transition
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Load requests the current identity from the service through the
// cache. A definitive answer moves the state to Authenticated or
// Unauthenticated; a transient failure leaves it untouched (Unknown on
// first load) so the caller can retry - it is never silently treated
// as logged out.
func (s *Store) Load(ctx context.Context) error {
	value, superseded, err := s.cache.Query(ctx, cache.KeyCurrentIdentity, func(ctx context.Context) (interface{}, error) {
		ident, err := s.service.CurrentIdentity(ctx)
		if errs.Is(err, errs.ErrNotAuthenticated) {
			// Definitive "no session": cache it as such
			return (*identity.Identity)(nil), nil
		}
		if err != nil {
			return nil, err
		}
		return ident, nil
	})
	if superseded {
		// A login or logout completed while this check was in flight;
		// that operation owns the state now and this response is
		// obsolete either way.
		log.Debug().Msg("superseded identity check discarded")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "[Store.Load] current identity fetch")
	}

	ident, _ := value.(*identity.Identity)
	if ident == nil {
		s.setState(StateUnauthenticated, nil)
	} else {
		s.setState(StateAuthenticated, ident)
	}
	return nil
}

// Login submits credentials. Success transitions to Authenticated and
// repopulates the current-identity cache entry; invalid credentials
// return ErrInvalidCredentials with the state at Unauthenticated; a
// transient failure leaves the state unchanged and is retryable.
func (s *Store) Login(ctx context.Context, creds identity.Credentials) (*identity.Identity, error) {
	value, err := s.cache.Mutate(ctx, func(ctx context.Context) (interface{}, error) {
		return s.service.Login(ctx, creds)
	}, cache.KeyCurrentIdentity, cache.KeyLeaderboard)
	if err != nil {
		if errs.Is(err, errs.ErrInvalidCredentials) {
			s.setState(StateUnauthenticated, nil)
		}
		return nil, errors.Wrap(err, "[Store.Login] login")
	}

	ident := value.(*identity.Identity)
	s.cache.Prime(cache.KeyCurrentIdentity, ident)
	s.setState(StateAuthenticated, ident)
	return copyIdentity(ident), nil
}

// Register creates a new account with the service. A taken username
// returns ErrUsernameTaken; success behaves like a login.
func (s *Store) Register(ctx context.Context, creds identity.Credentials) (*identity.Identity, error) {
	value, err := s.cache.Mutate(ctx, func(ctx context.Context) (interface{}, error) {
		return s.service.Register(ctx, creds)
	}, cache.KeyCurrentIdentity, cache.KeyLeaderboard)
	if err != nil {
		if errs.Is(err, errs.ErrUsernameTaken) {
			s.setState(StateUnauthenticated, nil)
		}
		return nil, errors.Wrap(err, "[Store.Register] register")
	}

	ident := value.(*identity.Identity)
	s.cache.Prime(cache.KeyCurrentIdentity, ident)
	s.setState(StateAuthenticated, ident)
	return copyIdentity(ident), nil
}

// Logout clears the identity, transitions to Unauthenticated and
// invalidates all session-scoped cache entries. The server-side logout
// is best effort: the local state is cleared even when the service is
// unreachable.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.service.Logout(ctx); err != nil {
		log.Err(err).Msg("server-side logout failed, clearing local session anyway")
	}
	s.cache.Invalidate(cache.KeyCurrentIdentity, cache.KeyLeaderboard)
	s.setState(StateUnauthenticated, nil)
	return nil
}

// setState applies a transition and fans it out to subscribers.
// Subscribers run outside the lock so they may call back into State.
func (s *Store) setState(next State, ident *identity.Identity) {
	s.mu.Lock()
	if s.state == next && identityEqual(s.ident, ident) {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.ident = copyIdentity(ident)
	subscribers := append([]Subscriber(nil), s.subscribers...)
	snapshot := copyIdentity(s.ident)
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(next, copyIdentity(snapshot))
	}
}

func copyIdentity(ident *identity.Identity) *identity.Identity {
	if ident == nil {
		return nil
	}
	copied := *ident
	return &copied
}

func identityEqual(a, b *identity.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
