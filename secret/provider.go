package secret

import (
	"errors"
	"fmt"
)

// Provider defines the interface for secret storage backends.
type Provider interface {
	// Get retrieves a secret by key.
	Get(key string) (string, error)

	// Set stores a secret with the given key.
	Set(key string, value string) error

	// Delete removes a secret by key.
	Delete(key string) error
}

// APIKeySecret is the storage key for a model provider's API key.
func APIKeySecret(provider string) string {
	return fmt.Sprintf("%s_api_key", provider)
}

// ChainProvider reads from a list of providers in order and returns the
// first hit. Writes and deletes go to the first provider only.
type ChainProvider struct {
	providers []Provider
}

func NewChainProvider(providers ...Provider) *ChainProvider {
	return &ChainProvider{providers: providers}
}

func (c *ChainProvider) Get(key string) (string, error) {
	for _, provider := range c.providers {
		value, err := provider.Get(key)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, &ErrSecretNotFound{}) {
			return "", err
		}
	}
	return "", &ErrSecretNotFound{Key: key, Err: errors.New("no provider holds this key")}
}

func (c *ChainProvider) Set(key string, value string) error {
	if len(c.providers) == 0 {
		return errors.New("no secret providers configured")
	}
	return c.providers[0].Set(key, value)
}

func (c *ChainProvider) Delete(key string) error {
	if len(c.providers) == 0 {
		return errors.New("no secret providers configured")
	}
	return c.providers[0].Delete(key)
}
