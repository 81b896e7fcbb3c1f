package middleware

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	IdempotencyKeyHeader    = "Idempotency-Key"
	maxIdempotencyKeyLength = 255
)

// IdempotencyKey copies the Idempotency-Key header onto the request context
// and echoes it back. Handlers decide whether the key is recorded or enforced.
func IdempotencyKey(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !validIdempotencyKey(key) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid Idempotency-Key header").
					WithDetails(map[string]any{"max_length": maxIdempotencyKeyLength}))
				return
			}

			ctx := WithIdempotencyKey(r.Context(), key)
			if logg != nil {
				ctx = logg.WithField(ctx, "idempotency_key", key)
			}
			w.Header().Set(IdempotencyKeyHeader, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validIdempotencyKey(key string) bool {
	if len(key) > maxIdempotencyKeyLength {
		return false
	}
	for _, r := range key {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
