package carriers

import (
	"context"
	"strings"
)

// Credential is one API account. Secret is only used by basic-auth backends.
type Credential struct {
	Label  string
	Key    string
	Secret string
}

// Credentials is the ordered list of accounts tried for every call.
type Credentials []Credential

// NewCredentials keeps the non-empty keys, in order.
func NewCredentials(creds ...Credential) Credentials {
	out := make(Credentials, 0, len(creds))
	for _, c := range creds {
		if strings.TrimSpace(c.Key) == "" {
			continue
		}
		c.Key = strings.TrimSpace(c.Key)
		c.Secret = strings.TrimSpace(c.Secret)
		out = append(out, c)
	}
	return out
}

// Try runs fn with each credential until one succeeds. Only authorization-class
// failures move on to the next candidate; anything else is returned as is.
func Try[T any](ctx context.Context, creds Credentials, fn func(Credential) (T, error)) (T, error) {
	var zero T
	if len(creds) == 0 {
		return zero, ErrNoCredentials
	}
	var lastErr error
	for _, cred := range creds {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := fn(cred)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsAuthClass(err) {
			return zero, err
		}
	}
	return zero, lastErr
}
