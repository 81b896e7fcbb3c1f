package fulfillment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const purchaseScope = "label-purchase"

const (
	purchaseStatePending = "pending"
	purchaseStateDone    = "done"
)

// PurchaseGuard reserves an Idempotency-Key for one label purchase request.
// Begin returns a prior result when the same request already completed.
type PurchaseGuard interface {
	Begin(ctx context.Context, key, fingerprint string) (*PurchaseResult, error)
	Complete(ctx context.Context, key, fingerprint string, result *PurchaseResult) error
	Abandon(ctx context.Context, key string) error
}

type purchaseRecord struct {
	Fingerprint string          `json:"fingerprint"`
	State       string          `json:"state"`
	Result      *PurchaseResult `json:"result,omitempty"`
}

// RedisPurchaseGuard stores purchase reservations in Redis with SETNX.
type RedisPurchaseGuard struct {
	store redis.ReservationStore
	ttl   time.Duration
}

func NewRedisPurchaseGuard(store redis.ReservationStore, ttl time.Duration) (*RedisPurchaseGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &RedisPurchaseGuard{store: store, ttl: ttl}, nil
}

func (g *RedisPurchaseGuard) Begin(ctx context.Context, key, fingerprint string) (*PurchaseResult, error) {
	storeKey, err := g.key(key)
	if err != nil {
		return nil, err
	}
	pending, err := json.Marshal(purchaseRecord{Fingerprint: fingerprint, State: purchaseStatePending})
	if err != nil {
		return nil, err
	}
	won, err := g.store.Reserve(ctx, storeKey, string(pending), g.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key")
	}
	if won {
		return nil, nil
	}

	raw, found, err := g.store.Load(ctx, storeKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency key")
	}
	if !found {
		// expired or abandoned between the two calls
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "idempotency key changed state, retry the request")
	}
	var existing purchaseRecord
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record")
	}
	if existing.Fingerprint != fingerprint {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request")
	}
	if existing.State == purchaseStateDone && existing.Result != nil {
		return existing.Result, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "label purchase already in progress for this idempotency key")
}

func (g *RedisPurchaseGuard) Complete(ctx context.Context, key, fingerprint string, result *PurchaseResult) error {
	storeKey, err := g.key(key)
	if err != nil {
		return err
	}
	done, err := json.Marshal(purchaseRecord{Fingerprint: fingerprint, State: purchaseStateDone, Result: result})
	if err != nil {
		return err
	}
	return g.store.Store(ctx, storeKey, string(done), g.ttl)
}

func (g *RedisPurchaseGuard) Abandon(ctx context.Context, key string) error {
	storeKey, err := g.key(key)
	if err != nil {
		return err
	}
	return g.store.Release(ctx, storeKey)
}

func (g *RedisPurchaseGuard) key(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("idempotency key is required")
	}
	return g.store.Key(purchaseScope, key), nil
}

// purchaseFingerprint hashes the fields that make two purchase requests equal.
func purchaseFingerprint(in PurchaseInput) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", in.OrderID, strings.TrimSpace(in.RateObjectID), strings.TrimSpace(in.PackageRef))))
	return hex.EncodeToString(sum[:])
}
