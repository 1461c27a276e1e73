package servicefakes

import (
	"context"
	"sync"

	"github.com/compareai/compare-client/identity"
	errs "github.com/compareai/compare-client/internal/errors"
	"github.com/compareai/compare-client/session"
)

var _ session.IdentityService = (*FakeIdentityService)(nil)

// FakeIdentityService is an in-memory stand-in for the remote identity
// service. It keeps plaintext accounts, a single active session and
// per-endpoint call counts, and can be switched to an unreachable mode
// to simulate transient network failure.
type FakeIdentityService struct {
	lock        sync.Mutex
	accounts    map[string]string // username -> password
	identities  map[string]identity.Identity
	nextID      int
	active      string // username of the active session, "" if none
	unreachable bool
	loginGate   chan struct{}
	currentGate chan struct{}

	currentIdentityCalls int
	loginCalls           int
	registerCalls        int
	logoutCalls          int
}

func NewFakeIdentityService() *FakeIdentityService {
	return &FakeIdentityService{
		accounts:   make(map[string]string),
		identities: make(map[string]identity.Identity),
		nextID:     1,
	}
}

// AddAccount pre-seeds an account and returns its identity
func (f *FakeIdentityService) AddAccount(username, password string, score int) identity.Identity {
	f.lock.Lock()
	defer f.lock.Unlock()

	ident := identity.Identity{ID: f.nextID, Username: username, Score: score}
	f.nextID++
	f.accounts[username] = password
	f.identities[username] = ident
	return ident
}

// SetActiveSession marks username as having an active server session,
// as if a prior login's cookie were still valid
func (f *FakeIdentityService) SetActiveSession(username string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.active = username
}

// SetUnreachable toggles simulated transport failure on every endpoint
func (f *FakeIdentityService) SetUnreachable(unreachable bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.unreachable = unreachable
}

// SetLoginGate makes Login block until gate is closed, so tests can
// hold a submission in flight
func (f *FakeIdentityService) SetLoginGate(gate chan struct{}) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.loginGate = gate
}

// SetCurrentIdentityGate makes CurrentIdentity block until gate is
// closed, so tests can hold an identity check in flight
func (f *FakeIdentityService) SetCurrentIdentityGate(gate chan struct{}) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.currentGate = gate
}

// CurrentIdentity answers from a snapshot taken before waiting on the
// gate, so a gated call reflects the session as it was when the
// request "left", not when it was released.
func (f *FakeIdentityService) CurrentIdentity(ctx context.Context) (*identity.Identity, error) {
	f.lock.Lock()
	f.currentIdentityCalls++
	gate := f.currentGate
	unreachable := f.unreachable
	active := f.active
	var ident identity.Identity
	if active != "" {
		ident = f.identities[active]
	}
	f.lock.Unlock()

	if gate != nil {
		<-gate
	}
	if unreachable {
		return nil, errs.ErrUnavailable
	}
	if active == "" {
		return nil, errs.ErrNotAuthenticated
	}
	return &ident, nil
}

func (f *FakeIdentityService) Login(ctx context.Context, creds identity.Credentials) (*identity.Identity, error) {
	f.lock.Lock()
	f.loginCalls++
	gate := f.loginGate
	f.lock.Unlock()
	if gate != nil {
		<-gate
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	if f.unreachable {
		return nil, errs.ErrUnavailable
	}
	password, ok := f.accounts[creds.Username]
	if !ok || password != creds.Password {
		return nil, errs.ErrInvalidCredentials
	}
	f.active = creds.Username
	ident := f.identities[creds.Username]
	return &ident, nil
}

func (f *FakeIdentityService) Register(ctx context.Context, creds identity.Credentials) (*identity.Identity, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.registerCalls++
	if f.unreachable {
		return nil, errs.ErrUnavailable
	}
	if _, ok := f.accounts[creds.Username]; ok {
		return nil, errs.ErrUsernameTaken
	}
	ident := identity.Identity{ID: f.nextID, Username: creds.Username, Score: 0}
	f.nextID++
	f.accounts[creds.Username] = creds.Password
	f.identities[creds.Username] = ident
	f.active = creds.Username
	return &ident, nil
}

func (f *FakeIdentityService) Logout(ctx context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.logoutCalls++
	if f.unreachable {
		return errs.ErrUnavailable
	}
	f.active = ""
	return nil
}

func (f *FakeIdentityService) CurrentIdentityCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.currentIdentityCalls
}

func (f *FakeIdentityService) LoginCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.loginCalls
}

func (f *FakeIdentityService) RegisterCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.registerCalls
}

func (f *FakeIdentityService) LogoutCallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.logoutCalls
}
