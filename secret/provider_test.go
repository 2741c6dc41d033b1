package secret_test

import (
	"errors"
	"testing"

	"github.com/spf13/afero"

	"github.com/weavely/weave/secret"
)

func TestFileProvider_RoundTrip(t *testing.T) {
	t.Parallel()

	provider, err := secret.NewFileProvider("/secrets", afero.NewMemMapFs())
	if err != nil {
		t.Fatalf("NewFileProvider failed: %v", err)
	}

	key := secret.APIKeySecret("anthropic")
	if err := provider.Set(key, "sk-test"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := provider.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "sk-test" {
		t.Errorf("value = %q, want sk-test", value)
	}

	if err := provider.Delete(key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := provider.Get(key); !errors.Is(err, &secret.ErrSecretNotFound{}) {
		t.Errorf("expected ErrSecretNotFound after delete, got %v", err)
	}
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("WEAVE_ANTHROPIC_API_KEY", "sk-env")

	provider := secret.NewEnvProvider()

	value, err := provider.Get("anthropic_api_key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "sk-env" {
		t.Errorf("value = %q, want sk-env", value)
	}

	if _, err := provider.Get("missing_key"); !errors.Is(err, &secret.ErrSecretNotFound{}) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
	if err := provider.Set("anthropic_api_key", "x"); err == nil {
		t.Error("env provider must be read-only")
	}
}

func TestChainProvider_FirstHitWins(t *testing.T) {
	t.Setenv("WEAVE_SHARED_KEY", "from-env")

	fileProvider, err := secret.NewFileProvider("/secrets", afero.NewMemMapFs())
	if err != nil {
		t.Fatal(err)
	}
	if err := fileProvider.Set("shared_key", "from-file"); err != nil {
		t.Fatal(err)
	}
	if err := fileProvider.Set("file_only", "file-value"); err != nil {
		t.Fatal(err)
	}

	chain := secret.NewChainProvider(secret.NewEnvProvider(), fileProvider)

	value, err := chain.Get("shared_key")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "from-env" {
		t.Errorf("value = %q, earlier provider must win", value)
	}

	value, err = chain.Get("file_only")
	if err != nil {
		t.Fatalf("Get fallthrough failed: %v", err)
	}
	if value != "file-value" {
		t.Errorf("value = %q, want file-value", value)
	}

	if _, err := chain.Get("nowhere"); !errors.Is(err, &secret.ErrSecretNotFound{}) {
		t.Errorf("expected ErrSecretNotFound, got %v", err)
	}
}
