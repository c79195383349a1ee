package types

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that prevents accidental logging or
// serialization of sensitive values such as Stripe secret keys. It
// overrides String() and MarshalJSON() to return a redacted placeholder.
//
// Use Unmask() to retrieve the raw plaintext value when it is genuinely
// needed (e.g., building an Authorization header).
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsEmpty reports whether the secret holds no value.
func (s SecretString) IsEmpty() bool {
	return string(s) == ""
}

// Preview returns a truncated, display-safe form of the secret for admin
// UIs: the first 8 and last 4 characters joined by an ellipsis. Secrets
// of 8 characters or fewer are returned whole, matching how short legacy
// keys were displayed.
func (s SecretString) Preview() string {
	raw := string(s)
	if len(raw) <= 8 {
		return raw
	}
	return raw[:8] + "..." + raw[len(raw)-4:]
}
