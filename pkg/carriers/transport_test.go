package carriers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	ops  []string
	errs []error
}

func (r *recordingObserver) ObserveCarrierCall(provider, operation string, err error, _ time.Duration) {
	r.ops = append(r.ops, provider+"."+operation)
	r.errs = append(r.errs, err)
}

func bearer(req *http.Request, cred Credential) {
	req.Header.Set("Authorization", "Bearer "+cred.Key)
}

func TestTransportDoDecodesSuccess(t *testing.T) {
	var captured *http.Request
	var body string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		data, _ := io.ReadAll(req.Body)
		body = string(data)
		return jsonResponse(http.StatusOK, `{"id":"abc"}`), nil
	})
	obs := &recordingObserver{}
	tr := NewTransport("shippo", "http://carrier.test/", bearer,
		WithHTTPClient(&http.Client{Transport: rt}), WithObserver(obs))

	var out struct {
		ID string `json:"id"`
	}
	err := tr.Do(context.Background(), Credential{Key: "tok"}, "rates", http.MethodPost, "/shipments/", map[string]string{"a": "b"}, &out)
	require.NoError(t, err)

	assert.Equal(t, "abc", out.ID)
	assert.Equal(t, "http://carrier.test/shipments/", captured.URL.String())
	assert.Equal(t, "Bearer tok", captured.Header.Get("Authorization"))
	assert.Equal(t, "application/json", captured.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"a":"b"}`, body)
	assert.Equal(t, []string{"shippo.rates"}, obs.ops)
	assert.NoError(t, obs.errs[0])
}

func TestTransportDoReturnsCarrierError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"messages":[{"text":"bad zip"}]}`), nil
	})
	tr := NewTransport("shippo", "http://carrier.test", bearer,
		WithHTTPClient(&http.Client{Transport: rt}),
		WithErrorDecoder(func([]byte) []Message { return []Message{{Text: "bad zip"}} }))

	err := tr.Do(context.Background(), Credential{Key: "tok"}, "purchase", http.MethodPost, "/transactions/", nil, nil)
	cerr := AsError(err)
	require.NotNil(t, cerr)
	assert.Equal(t, http.StatusBadRequest, cerr.StatusCode)
	assert.Equal(t, "purchase", cerr.Operation)
	assert.True(t, cerr.IsValidation())
	assert.Equal(t, []string{"bad zip"}, MessageTexts(cerr.Messages))
}

func TestTransportClientErrorsDoNotTripBreaker(t *testing.T) {
	calls := 0
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusNotFound, `{}`), nil
	})
	tr := NewTransport("shippo", "http://carrier.test", bearer,
		WithHTTPClient(&http.Client{Transport: rt}),
		WithBreaker(BreakerSettings{MaxFailures: 1, OpenDuration: time.Minute}))

	for i := 0; i < 3; i++ {
		err := tr.Do(context.Background(), Credential{Key: "tok"}, "lookup", http.MethodGet, "/transactions/x", nil, nil)
		require.True(t, IsAuthClass(err))
	}
	assert.Equal(t, 3, calls)
}

func TestTransportServerErrorsOpenBreaker(t *testing.T) {
	calls := 0
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusBadGateway, `upstream down`), nil
	})
	tr := NewTransport("shipengine", "http://carrier.test", bearer,
		WithHTTPClient(&http.Client{Transport: rt}),
		WithBreaker(BreakerSettings{MaxFailures: 2, OpenDuration: time.Minute}))

	for i := 0; i < 2; i++ {
		err := tr.Do(context.Background(), Credential{Key: "k"}, "rates", http.MethodPost, "/v1/rates", nil, nil)
		cerr := AsError(err)
		require.NotNil(t, cerr)
		assert.Equal(t, http.StatusBadGateway, cerr.StatusCode)
	}

	err := tr.Do(context.Background(), Credential{Key: "k"}, "rates", http.MethodPost, "/v1/rates", nil, nil)
	require.Error(t, err)
	assert.Nil(t, AsError(err))
	assert.Equal(t, 2, calls)
}

func TestTransportNetworkError(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	tr := NewTransport("shipstation", "http://carrier.test", bearer, WithHTTPClient(&http.Client{Transport: rt}))
	err := tr.Do(context.Background(), Credential{Key: "k"}, "void", http.MethodPost, "/shipments/voidlabel", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAmountToCents(t *testing.T) {
	cents, err := AmountToCents("12.345")
	require.NoError(t, err)
	assert.Equal(t, int64(1235), cents)

	cents, err = AmountToCents("")
	require.NoError(t, err)
	assert.Zero(t, cents)

	_, err = AmountToCents("twelve")
	assert.Error(t, err)

	assert.Equal(t, int64(1999), FloatToCents(19.99))
	assert.Equal(t, "USD", NormalizeCurrency(""))
	assert.Equal(t, "CAD", NormalizeCurrency("cad"))
}

func TestTrackingURL(t *testing.T) {
	assert.Equal(t, "https://www.ups.com/track?tracknum=1Z999", TrackingURL("UPS", "1Z999"))
	assert.Equal(t, "", TrackingURL("pigeon", "123"))
	assert.Equal(t, "", TrackingURL("usps", " "))
}
