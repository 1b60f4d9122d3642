// Package provider contains authflow.IdentityProvider implementations.
//
// AccountClient creates password accounts against an HTTP auth backend and
// FederatedClient runs OAuth2 sign-in with Google, GitHub or any provider
// described by a ProviderConfig. Provider glues the two together.
// MemoryProvider keeps everything in process for development and tests.
package provider

import "github.com/nutrijel/authflow"

var (
	_ authflow.IdentityProvider = (*Provider)(nil)
	_ authflow.IdentityProvider = (*MemoryProvider)(nil)
)

// Provider combines account creation and federated sign-in into one
// authflow.IdentityProvider
type Provider struct {
	*AccountClient
	*FederatedClient
}

// New creates a Provider
func New(accounts *AccountClient, federated *FederatedClient) *Provider {
	return &Provider{AccountClient: accounts, FederatedClient: federated}
}
