package session

import (
	"context"

	"github.com/compareai/compare-client/identity"
)

// IdentityService is the remote identity endpoint surface the Store
// drives. The production implementation is apiclient.Client; tests use
// servicefakes.FakeIdentityService.
type IdentityService interface {
	CurrentIdentity(ctx context.Context) (*identity.Identity, error)
	Login(ctx context.Context, creds identity.Credentials) (*identity.Identity, error)
	Register(ctx context.Context, creds identity.Credentials) (*identity.Identity, error)
	Logout(ctx context.Context) error
}
