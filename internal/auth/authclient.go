package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/twinvest-bridge/internal/identity"
)

const DefaultMaxTimeToLive = 8 * time.Hour

// AuthorizeRequest asks an identity provider to delegate to SessionKey.
type AuthorizeRequest struct {
	IdentityProvider string
	SessionPublicKey []byte
	MaxTimeToLive    time.Duration
}

// Authorizer runs the interactive part of a federated login. It blocks
// until the provider answers or ctx ends.
type Authorizer interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (identity.DelegationChain, error)
}

// AuthClient keeps a session key and the delegation issued to it, backed
// by a KeyStore so sessions survive restarts.
type AuthClient struct {
	store         KeyStore
	authorizer    Authorizer
	maxTimeToLive time.Duration
	now           func() time.Time

	mu    sync.Mutex
	key   *identity.Ed25519
	chain *identity.DelegationChain
}

type AuthClientConfig struct {
	Store         KeyStore
	Authorizer    Authorizer
	MaxTimeToLive time.Duration
	Now           func() time.Time
}

// NewAuthClient restores the stored session, or creates a fresh session
// key when none is stored.
func NewAuthClient(ctx context.Context, cfg AuthClientConfig) (*AuthClient, error) {
	if cfg.Store == nil {
		cfg.Store = NewMemoryKeyStore()
	}
	if cfg.Authorizer == nil {
		return nil, errors.New("auth client needs an authorizer")
	}
	if cfg.MaxTimeToLive <= 0 {
		cfg.MaxTimeToLive = DefaultMaxTimeToLive
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	c := &AuthClient{
		store:         cfg.Store,
		authorizer:    cfg.Authorizer,
		maxTimeToLive: cfg.MaxTimeToLive,
		now:           cfg.Now,
	}

	stored, err := cfg.Store.Load(ctx)
	if err != nil && !errors.Is(err, ErrNoSession) {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if stored != nil {
		key, err := identity.Ed25519FromSeed(stored.SessionKey)
		if err != nil {
			return nil, fmt.Errorf("restore session key: %w", err)
		}
		c.key = key
		if stored.Delegation != nil && stored.Delegation.Valid(c.now()) {
			if _, err := identity.NewDelegated(key, *stored.Delegation); err == nil {
				c.chain = stored.Delegation
			}
		}
		return c, nil
	}
	if c.key, err = identity.NewEd25519(); err != nil {
		return nil, err
	}
	if err := cfg.Store.Save(ctx, StoredSession{SessionKey: c.key.Seed()}); err != nil {
		return nil, fmt.Errorf("save session key: %w", err)
	}
	return c, nil
}

// IsAuthenticated reports whether an unexpired delegation is held.
func (c *AuthClient) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticatedLocked()
}

func (c *AuthClient) authenticatedLocked() bool {
	return c.chain != nil && c.chain.Valid(c.now())
}

// Login runs the authorizer and stores the delegation it returns. Errors
// from the authorizer are returned unchanged.
func (c *AuthClient) Login(ctx context.Context, identityProvider string) error {
	c.mu.Lock()
	key := c.key
	c.mu.Unlock()

	chain, err := c.authorizer.Authorize(ctx, AuthorizeRequest{
		IdentityProvider: identityProvider,
		SessionPublicKey: key.PublicKey(),
		MaxTimeToLive:    c.maxTimeToLive,
	})
	if err != nil {
		return err
	}
	if _, err := identity.NewDelegated(key, chain); err != nil {
		return fmt.Errorf("identity provider returned an unusable delegation: %w", err)
	}
	if !chain.Valid(c.now()) {
		return errors.New("identity provider returned an expired delegation")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Save(ctx, StoredSession{SessionKey: key.Seed(), Delegation: &chain}); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	c.key = key
	c.chain = &chain
	return nil
}

// Identity returns the delegated identity, or the anonymous identity when
// not authenticated.
func (c *AuthClient) Identity() identity.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.authenticatedLocked() {
		return identity.Anonymous{}
	}
	id, err := identity.NewDelegated(c.key, *c.chain)
	if err != nil {
		return identity.Anonymous{}
	}
	return id
}

// Expiration is when the current delegation lapses, zero if none is held.
func (c *AuthClient) Expiration() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chain == nil {
		return time.Time{}
	}
	return c.chain.Expiration()
}

// Logout drops the delegation and rotates the session key.
func (c *AuthClient) Logout(ctx context.Context) error {
	key, err := identity.NewEd25519()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Delete(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	c.key = key
	c.chain = nil
	return c.store.Save(ctx, StoredSession{SessionKey: key.Seed()})
}
