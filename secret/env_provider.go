package secret

import (
	"errors"
	"os"
	"strings"
)

// EnvProvider resolves secrets from environment variables. The key
// "anthropic_api_key" maps to WEAVE_ANTHROPIC_API_KEY. It is read-only.
type EnvProvider struct {
	prefix string
}

func NewEnvProvider() *EnvProvider {
	return &EnvProvider{prefix: "WEAVE_"}
}

func (p *EnvProvider) Get(key string) (string, error) {
	name := p.prefix + strings.ToUpper(key)
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", &ErrSecretNotFound{Key: key, Err: errors.New(name + " is not set")}
	}
	return value, nil
}

func (p *EnvProvider) Set(key string, value string) error {
	return errors.New("environment secrets are read-only")
}

func (p *EnvProvider) Delete(key string) error {
	return errors.New("environment secrets are read-only")
}
