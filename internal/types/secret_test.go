package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func TestSecretStringRedaction(t *testing.T) {
	secret := NewSecretString("hunter2")

	if secret.Value() != "hunter2" {
		t.Errorf("Value() = %q, want the raw secret", secret.Value())
	}
	if secret.String() != "[REDACTED]" {
		t.Errorf("String() = %q, want [REDACTED]", secret.String())
	}
	if got := fmt.Sprintf("dsn=%v", secret); strings.Contains(got, "hunter2") {
		t.Errorf("Sprintf leaked the secret: %q", got)
	}

	empty := SecretString{}
	if !empty.IsEmpty() {
		t.Error("IsEmpty() = false for zero value")
	}
	if empty.String() != "" {
		t.Errorf("String() on empty = %q, want \"\"", empty.String())
	}
}

func TestSecretStringJSON(t *testing.T) {
	data, err := json.Marshal(NewSecretString("hunter2"))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"[REDACTED]"` {
		t.Errorf("Marshal() = %s, want redacted", data)
	}

	empty, err := json.Marshal(SecretString{})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(empty) != `""` {
		t.Errorf("Marshal() on empty = %s, want \"\"", empty)
	}

	// Unmarshal keeps the raw value so config files can carry secrets in.
	var s SecretString
	if err := json.Unmarshal([]byte(`"postgres://u:p@db/app"`), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if s.Value() != "postgres://u:p@db/app" {
		t.Errorf("Value() after Unmarshal = %q", s.Value())
	}
}
