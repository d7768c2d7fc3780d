package oauthcore

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// registeredClient holds a client's bcrypt secret hash and allowed grants
type registeredClient struct {
	secretHash []byte
	grantTypes map[string]struct{}
}

// ClientRegistry is an in-process registry of confidential clients with
// bcrypt-hashed secrets and per-client allowed grant types. Its
// Authenticator method produces the ClientAuthenticator predicate consumed
// by Service.IssueToken. Deployments with an external client database
// supply their own predicate instead.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*registeredClient
}

// NewClientRegistry creates an empty client registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*registeredClient),
	}
}

// Register adds a client with the given secret and allowed grant types.
// The secret is stored only as a bcrypt hash. With no grant types given the
// client may use client_credentials, password, and refresh_token.
func (r *ClientRegistry) Register(clientID, clientSecret string, grantTypes ...string) error {
	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("client ID and secret are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(clientSecret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash client secret: %w", err)
	}

	if len(grantTypes) == 0 {
		grantTypes = []string{GrantClientCredentials, GrantPassword, GrantRefreshToken}
	}
	allowed := make(map[string]struct{}, len(grantTypes))
	for _, gt := range grantTypes {
		allowed[gt] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[clientID] = &registeredClient{
		secretHash: hash,
		grantTypes: allowed,
	}

	return nil
}

// Authenticate validates client credentials for a grant type.
func (r *ClientRegistry) Authenticate(ctx context.Context, grantType, clientID, clientSecret string) bool {
	r.mu.RLock()
	client, exists := r.clients[clientID]
	r.mu.RUnlock()

	if !exists {
		return false
	}
	if _, allowed := client.grantTypes[grantType]; !allowed {
		return false
	}

	return bcrypt.CompareHashAndPassword(client.secretHash, []byte(clientSecret)) == nil
}

// Authenticator returns the registry's ClientAuthenticator predicate
func (r *ClientRegistry) Authenticator() ClientAuthenticator {
	return r.Authenticate
}
