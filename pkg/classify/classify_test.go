package classify

import (
	"testing"

	"github.com/campex/campex/pkg/rbac"
	"github.com/campex/campex/pkg/token"
)

func TestDefaultRegistryLegacyAdmin(t *testing.T) {
	registry := DefaultRegistry()

	result, ok := registry.Classify(token.Claims{"sub": "admin"})
	if !ok {
		t.Fatal("expected legacy admin claims to classify")
	}
	if result.Role != rbac.RoleAdmin || result.Source != SourceLegacyAdmin {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDefaultRegistryTelegram(t *testing.T) {
	registry := DefaultRegistry()

	result, ok := registry.Classify(token.Claims{"telegram_id": float64(42)})
	if !ok {
		t.Fatal("expected telegram claims to classify")
	}
	if result.Role != rbac.RoleStudent || result.Source != SourceTelegram {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDefaultRegistryUnknown(t *testing.T) {
	registry := DefaultRegistry()

	if _, ok := registry.Classify(token.Claims{"sub": "u-17"}); ok {
		t.Fatal("plain user claims must not classify")
	}
}

func TestLegacyAdminWinsOverTelegramOrder(t *testing.T) {
	registry := DefaultRegistry()

	// A token with both shapes is a telegram user: the admin classifier
	// refuses claims that carry a telegram identity.
	result, ok := registry.Classify(token.Claims{"sub": "admin", "telegram_id": float64(7)})
	if !ok {
		t.Fatal("expected classification")
	}
	if result.Source != SourceTelegram {
		t.Fatalf("expected telegram source, got %q", result.Source)
	}
}

func TestRegisterValidation(t *testing.T) {
	registry, err := NewRegistry()
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	if err := registry.Register(nil); err != ErrNilClassifier {
		t.Fatalf("expected ErrNilClassifier, got %v", err)
	}
	if err := registry.Register(telegramClassifier{}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := registry.Register(telegramClassifier{}); err != ErrDuplicateName {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	if _, ok := registry.Classifier("telegram"); !ok {
		t.Fatal("expected to look up registered classifier by name")
	}
}
