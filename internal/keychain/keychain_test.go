package keychain

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
)

func TestAPIKeyRoundTrip(t *testing.T) {
	m := New(keyring.NewArrayKeyring(nil))

	if _, err := m.APIKey("gemini"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("APIKey() on empty ring error = %v, want ErrNotFound", err)
	}
	if err := m.SetAPIKey("Gemini", "AIza-test-key"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}
	got, err := m.APIKey("gemini")
	if err != nil || got != "AIza-test-key" {
		t.Fatalf("APIKey() = %q, %v", got, err)
	}
	if _, err := m.APIKey("anthropic"); !errors.Is(err, ErrNotFound) {
		t.Errorf("keys leak across providers: %v", err)
	}
	if err := m.DeleteAPIKey("gemini"); err != nil {
		t.Fatalf("DeleteAPIKey: %v", err)
	}
	if err := m.DeleteAPIKey("gemini"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteAPIKey error = %v, want ErrNotFound", err)
	}
	if err := m.SetAPIKey("gemini", ""); err == nil {
		t.Error("SetAPIKey accepted an empty key")
	}
}

func TestResolve(t *testing.T) {
	m := New(keyring.NewArrayKeyring([]keyring.Item{{Key: "anthropic_api_key", Data: []byte("sk-stored")}}))

	tests := []struct {
		name       string
		m          *Manager
		provider   string
		configured string
		want       string
	}{
		{"configured wins", m, "anthropic", "sk-config", "sk-config"},
		{"keychain fallback", m, "anthropic", "", "sk-stored"},
		{"nothing stored", m, "gemini", "", ""},
		{"no manager", nil, "anthropic", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.m, tt.provider, tt.configured)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMask(t *testing.T) {
	if got := Mask("short"); got != "*****" {
		t.Errorf("Mask(short) = %q", got)
	}
	if got := Mask("sk-ant-1234567890"); got != "sk-a*********7890" {
		t.Errorf("Mask(long) = %q", got)
	}
}
