package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
)

type contextKey string

const (
	ctxUserID         contextKey = "user_id"
	ctxRole           contextKey = "actor_role"
	ctxClaims         contextKey = "claims"
	ctxIdempotencyKey contextKey = "idempotency_key"
	ctxRequestID      contextKey = "request_id"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func ClaimsFromContext(ctx context.Context) *auth.AccessTokenClaims {
	if ctx == nil {
		return nil
	}
	claims, _ := ctx.Value(ctxClaims).(*auth.AccessTokenClaims)
	return claims
}

// IdempotencyKeyFromContext returns the caller-supplied Idempotency-Key, if any.
func IdempotencyKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxIdempotencyKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithIdempotencyKey injects the idempotency key into the context.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdempotencyKey, key)
}

// WithRequestID injects the request id into the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRequestID, id)
}

// RequestIDFromContext returns the id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRequestID).(string); ok {
		return v
	}
	return ""
}
