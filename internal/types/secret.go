package types

import "encoding/json"

// SecretString holds a sensitive value (password, DSN) and redacts it when
// printed or marshaled so it cannot leak through logs or config dumps.
type SecretString struct {
	value string
}

func NewSecretString(value string) SecretString {
	return SecretString{value: value}
}

// Value returns the underlying secret.
func (s SecretString) Value() string {
	return s.value
}

func (s SecretString) String() string {
	if s.value == "" {
		return ""
	}
	return "[REDACTED]"
}

func (s SecretString) IsEmpty() bool {
	return s.value == ""
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	if s.value == "" {
		return json.Marshal("")
	}
	return json.Marshal("[REDACTED]")
}

func (s *SecretString) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	s.value = value
	return nil
}
