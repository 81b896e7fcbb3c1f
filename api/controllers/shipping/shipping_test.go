package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/fulfillment"
	"github.com/angelmondragon/storefront-backend/internal/packages"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/internal/shipments"
	"github.com/angelmondragon/storefront-backend/pkg/carriers"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubFulfillment struct {
	rates        []carriers.Rate
	result       *fulfillment.PurchaseResult
	err          error
	lastPurchase fulfillment.PurchaseInput
	voided       uuid.UUID
}

func (s *stubFulfillment) GetRates(ctx context.Context, input fulfillment.RatesInput) ([]carriers.Rate, error) {
	return s.rates, s.err
}

func (s *stubFulfillment) PurchaseLabel(ctx context.Context, input fulfillment.PurchaseInput) (*fulfillment.PurchaseResult, error) {
	s.lastPurchase = input
	return s.result, s.err
}

func (s *stubFulfillment) VoidLabel(ctx context.Context, id uuid.UUID) (*models.Shipment, error) {
	s.voided = id
	if s.err != nil {
		return nil, s.err
	}
	return &models.Shipment{ID: id, Status: "voided"}, nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func post(handler http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRatesReturnsList(t *testing.T) {
	days := 3
	svc := &stubFulfillment{rates: []carriers.Rate{{ObjectID: "rate_1", Carrier: "USPS", Service: "Ground", AmountCents: 725, Currency: "USD", EstimatedDays: &days}}}
	rec := post(Rates(svc, nil), "/shipping/rates", `{"orderId":"`+uuid.NewString()+`"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var data struct {
		Rates []carriers.Rate `json:"rates"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	require.Len(t, data.Rates, 1)
	assert.Equal(t, "rate_1", data.Rates[0].ObjectID)
}

func TestRatesValidatesBody(t *testing.T) {
	rec := post(Rates(&stubFulfillment{}, nil), "/shipping/rates", `{"packageId":"small"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(Rates(&stubFulfillment{}, nil), "/shipping/rates", `{"orderId":"`+uuid.NewString()+`","extra":1}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRatesConfigurationError(t *testing.T) {
	svc := &stubFulfillment{err: pkgerrors.New(pkgerrors.CodeConfiguration, "shipping origin is not configured")}
	rec := post(Rates(svc, nil), "/shipping/rates", `{"orderId":"`+uuid.NewString()+`"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "shipping origin is not configured", decode(t, rec).Error.Message)
}

func TestPurchaseLabelPassesIdempotencyKey(t *testing.T) {
	svc := &stubFulfillment{result: &fulfillment.PurchaseResult{ShipmentID: uuid.New(), TrackingNumber: "9400"}}
	handler := middleware.IdempotencyKey(nil)(PurchaseLabel(svc, nil))
	orderID := uuid.New()

	rec := post(handler, "/shipping/labels", `{"orderId":"`+orderID.String()+`","rateObjectId":"rate_1"}`, map[string]string{"Idempotency-Key": "purchase-1"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "purchase-1", svc.lastPurchase.IdempotencyKey)
	assert.Equal(t, orderID, svc.lastPurchase.OrderID)
	assert.Equal(t, "rate_1", svc.lastPurchase.RateObjectID)
}

func TestPurchaseLabelIgnoresKeyInBody(t *testing.T) {
	svc := &stubFulfillment{result: &fulfillment.PurchaseResult{}}
	rec := post(PurchaseLabel(svc, nil), "/shipping/labels", `{"orderId":"`+uuid.NewString()+`","rateObjectId":"r","IdempotencyKey":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchaseLabelCarrierRejection(t *testing.T) {
	messages := []string{"Address not found"}
	svc := &stubFulfillment{err: pkgerrors.New(pkgerrors.CodeCarrierRejected, "Address not found").WithDetails(map[string]any{"messages": messages})}
	rec := post(PurchaseLabel(svc, nil), "/shipping/labels", `{"orderId":"`+uuid.NewString()+`","rateObjectId":"rate_1"}`, nil)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "CARRIER_REJECTED", env.Error.Code)
	assert.Equal(t, []any{"Address not found"}, env.Error.Details["messages"])
}

func TestPurchaseLabelConflict(t *testing.T) {
	svc := &stubFulfillment{err: pkgerrors.New(pkgerrors.CodeConflict, "label already purchased")}
	rec := post(PurchaseLabel(svc, nil), "/shipping/labels", `{"orderId":"`+uuid.NewString()+`","rateObjectId":"rate_1"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestVoidLabel(t *testing.T) {
	svc := &stubFulfillment{}
	id := uuid.New()
	rec := post(VoidLabel(svc, nil), "/shipping/labels/void", `{"shipmentId":"`+id.String()+`"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, id, svc.voided)
}

func TestNilServicesReturnInternal(t *testing.T) {
	rec := post(Rates(nil, nil), "/shipping/rates", `{}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	rec = post(PurchaseLabel(nil, nil), "/shipping/labels", `{}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type stubOrigin struct {
	addr  models.Address
	err   error
	saved settings.OriginInput
}

func (s *stubOrigin) Origin(context.Context) (models.Address, error) { return s.addr, s.err }

func (s *stubOrigin) UpdateOrigin(_ context.Context, input settings.OriginInput) (models.Address, error) {
	s.saved = input
	return models.Address{Name: input.Name, City: input.City}, nil
}

func TestOriginRoutes(t *testing.T) {
	svc := &stubOrigin{err: pkgerrors.New(pkgerrors.CodeConfiguration, "shipping origin is not configured")}
	rec := httptest.NewRecorder()
	GetOrigin(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shipping/origin", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/shipping/origin", bytes.NewBufferString(`{"name":"Warehouse","line1":"1 Dock","city":"Portland","postalCode":"97201","country":"US"}`))
	rec = httptest.NewRecorder()
	UpdateOrigin(svc, nil).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Portland", svc.saved.City)

	req = httptest.NewRequest(http.MethodPut, "/shipping/origin", bytes.NewBufferString(`{"name":"Warehouse"}`))
	rec = httptest.NewRecorder()
	UpdateOrigin(svc, nil).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubShipments struct {
	detail  *shipments.Detail
	deleted uuid.UUID
	update  shipments.ManualUpdate
}

func (s *stubShipments) Get(_ context.Context, id uuid.UUID) (*shipments.Detail, error) {
	if s.detail == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
	}
	return s.detail, nil
}

func (s *stubShipments) ListByOrder(context.Context, uuid.UUID) ([]models.Shipment, error) {
	return nil, nil
}

func (s *stubShipments) Update(_ context.Context, id uuid.UUID, input shipments.ManualUpdate) (*models.Shipment, error) {
	s.update = input
	return &models.Shipment{ID: id}, nil
}

func (s *stubShipments) Delete(_ context.Context, id uuid.UUID) error {
	s.deleted = id
	return nil
}

func shipmentRouter(svc shipmentService) http.Handler {
	r := chi.NewRouter()
	r.Get("/orders/{orderId}/shipments", ListOrderShipments(svc, nil))
	r.Get("/shipments/{shipmentId}", GetShipment(svc, nil))
	r.Patch("/shipments/{shipmentId}", UpdateShipment(svc, nil))
	r.Delete("/shipments/{shipmentId}", DeleteShipment(svc, nil))
	return r
}

func TestShipmentRoutes(t *testing.T) {
	svc := &stubShipments{}
	router := shipmentRouter(svc)
	id := uuid.New()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shipments/"+id.String(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shipments/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+uuid.NewString()+"/shipments", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"shipments":[]}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/shipments/"+id.String(), bytes.NewBufferString(`{"status":"delivered","trackingNumber":"1Z"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.update.TrackingNumber)
	assert.Equal(t, "1Z", *svc.update.TrackingNumber)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/shipments/"+id.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, id, svc.deleted)
}

type stubPackages struct {
	created   packages.Input
	defaultID uuid.UUID
}

func (s *stubPackages) List(context.Context) ([]models.Package, error) { return nil, nil }

func (s *stubPackages) Create(_ context.Context, input packages.Input) (*models.Package, error) {
	s.created = input
	return &models.Package{ID: uuid.New(), Name: input.Name}, nil
}

func (s *stubPackages) Update(_ context.Context, id uuid.UUID, input packages.Input) (*models.Package, error) {
	return &models.Package{ID: id, Name: input.Name}, nil
}

func (s *stubPackages) Delete(context.Context, uuid.UUID) error { return nil }

func (s *stubPackages) SetDefault(_ context.Context, id uuid.UUID) (*models.Package, error) {
	s.defaultID = id
	return &models.Package{ID: id, IsDefault: true}, nil
}

func TestPackageRoutes(t *testing.T) {
	svc := &stubPackages{}
	r := chi.NewRouter()
	r.Get("/packages", ListPackages(svc, nil))
	r.Post("/packages", CreatePackage(svc, nil))
	r.Put("/packages/{packageId}", UpdatePackage(svc, nil))
	r.Delete("/packages/{packageId}", DeletePackage(svc, nil))
	r.Post("/packages/{packageId}/default", SetDefaultPackage(svc, nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/packages", nil))
	assert.JSONEq(t, `{"data":{"packages":[]}}`, rec.Body.String())

	rec = post(r, "/packages", `{"name":"Small box","lengthCm":20,"widthCm":15,"heightCm":10,"weightGrams":100}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Small box", svc.created.Name)

	rec = post(r, "/packages", `{"name":"Flat","lengthCm":0,"widthCm":15,"heightCm":10}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	id := uuid.New()
	rec = post(r, "/packages/"+id.String()+"/default", ``, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, id, svc.defaultID)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/packages/"+id.String(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
