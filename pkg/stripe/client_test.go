package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

const testPayload = `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","api_version":"2020-08-27","livemode":%t,"data":{"object":{"id":"pi_1","object":"payment_intent"}}}`

func TestNewClientValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{Env: "test"}, nil)
	require.ErrorIs(t, err, ErrSecretRequired)

	_, err = NewClient(ctx, config.StripeConfig{Env: "staging", Secret: "whsec"}, nil)
	require.Error(t, err)

	client, err := NewClient(ctx, config.StripeConfig{Env: " LIVE ", Secret: "whsec"}, nil)
	require.NoError(t, err)
	require.Equal(t, EnvLive, client.Environment())
}

func TestVerifyEvent(t *testing.T) {
	client, err := NewClient(context.Background(), config.StripeConfig{Env: "test", Secret: "whsec_test", Tolerance: time.Minute}, nil)
	require.NoError(t, err)

	payload := []byte(fmt.Sprintf(testPayload, false))
	event, err := client.VerifyEvent(payload, signature(t, "whsec_test", payload, time.Now()))
	require.NoError(t, err)
	require.Equal(t, "evt_1", event.ID)

	_, err = client.VerifyEvent(payload, signature(t, "other", payload, time.Now()))
	require.Error(t, err)

	_, err = client.VerifyEvent(payload, signature(t, "whsec_test", payload, time.Now().Add(-time.Hour)))
	require.Error(t, err, "signatures older than the tolerance are rejected")
}

func TestVerifyEventRejectsLivemodeMismatch(t *testing.T) {
	live, err := NewClient(context.Background(), config.StripeConfig{Env: "live", Secret: "whsec_live"}, nil)
	require.NoError(t, err)

	testEvent := []byte(fmt.Sprintf(testPayload, false))
	_, err = live.VerifyEvent(testEvent, signature(t, "whsec_live", testEvent, time.Now()))
	require.ErrorIs(t, err, ErrLivemodeMismatch)

	liveEvent := []byte(fmt.Sprintf(testPayload, true))
	_, err = live.VerifyEvent(liveEvent, signature(t, "whsec_live", liveEvent, time.Now()))
	require.NoError(t, err)
}

func signature(t *testing.T, secret string, payload []byte, ts time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	if _, err := fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload); err != nil {
		t.Fatalf("hmac: %v", err)
	}
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
