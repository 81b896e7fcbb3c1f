package fulfillment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/packages"
	"github.com/angelmondragon/storefront-backend/internal/settings"
	"github.com/angelmondragon/storefront-backend/internal/shipments"
	"github.com/angelmondragon/storefront-backend/pkg/carriers"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeProvider struct {
	mu sync.Mutex

	rates       []carriers.Rate
	ratesErr    error
	purchase    *carriers.Label
	purchaseErr error
	lookups     []*carriers.Label
	lookupErr   error
	voidErr     error

	rateReqs    []carriers.RateRequest
	purchaseReq []carriers.PurchaseRequest
	lookupCalls int
	voided      []string
}

func (f *fakeProvider) Name() string { return "shippo" }

func (f *fakeProvider) GetRates(_ context.Context, req carriers.RateRequest) ([]carriers.Rate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateReqs = append(f.rateReqs, req)
	return f.rates, f.ratesErr
}

func (f *fakeProvider) PurchaseLabel(_ context.Context, req carriers.PurchaseRequest) (*carriers.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purchaseReq = append(f.purchaseReq, req)
	if f.purchaseErr != nil {
		return nil, f.purchaseErr
	}
	copied := *f.purchase
	return &copied, nil
}

// LookupLabel replays the configured lookups in order and repeats the last one.
func (f *fakeProvider) LookupLabel(_ context.Context, id string) (*carriers.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupCalls++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if len(f.lookups) == 0 {
		return &carriers.Label{TransactionID: id, Status: carriers.StatusQueued}, nil
	}
	idx := f.lookupCalls - 1
	if idx >= len(f.lookups) {
		idx = len(f.lookups) - 1
	}
	copied := *f.lookups[idx]
	return &copied, nil
}

func (f *fakeProvider) VoidLabel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.voided = append(f.voided, id)
	return f.voidErr
}

type stubMailer struct {
	sent []mailer.ShipmentConfirmation
	err  error
}

func (m *stubMailer) SendShipmentConfirmation(_ context.Context, data mailer.ShipmentConfirmation) error {
	m.sent = append(m.sent, data)
	return m.err
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

var _ redis.ReservationStore = (*memoryStore)(nil)

func newMemoryStore() *memoryStore { return &memoryStore{data: map[string]string{}} }

func (m *memoryStore) Key(scope, id string) string { return "sf:" + scope + ":" + id }

func (m *memoryStore) Reserve(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *memoryStore) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryStore) Store(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type harness struct {
	conn      *gorm.DB
	provider  *fakeProvider
	mailer    *stubMailer
	shipments shipments.Repository
	order     *models.Order
	sleeps    int
	params    ServiceParams
}

func intPtr(v int) *int { return &v }

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	ctx := context.Background()

	_, err := settings.NewRepository(conn).SaveOrigin(ctx, models.Address{
		Name: "Warehouse", Line1: "500 Dock St", City: "Portland", State: "OR", PostalCode: "97201", Country: "US",
	})
	require.NoError(t, err)
	require.NoError(t, conn.Create(&models.Package{Name: "Small box", LengthCm: 20, WidthCm: 15, HeightCm: 10, WeightGrams: 100, IsDefault: true}).Error)

	product := models.Product{ID: uuid.New(), Name: "Mug", WeightGrams: intPtr(350)}
	require.NoError(t, conn.Create(&product).Error)
	order := &models.Order{
		OrderNumber:    "1001",
		Email:          "sam@example.com",
		BillingName:    "Sam R",
		BillingAddress: models.Address{Line1: "1 Main", City: "Austin", PostalCode: "78701", Country: "US"},
		OrderStatus:    enums.OrderStatusProcessing,
		ShippingStatus: enums.ShippingStatusPending,
		PaymentStatus:  enums.PaymentStatusPaid,
		Items: []models.OrderItem{
			{Name: "Mug", Quantity: 2, ProductID: &product.ID},
			{Name: "Sticker", Quantity: 1},
		},
	}
	require.NoError(t, orders.NewRepository(conn).Create(ctx, order))

	pkgSvc, err := packages.NewService(packages.ServiceParams{Repo: packages.NewRepository(conn), Tx: db.Wrap(conn)})
	require.NoError(t, err)
	settingsSvc, err := settings.NewService(settings.NewRepository(conn))
	require.NoError(t, err)

	h := &harness{
		conn: conn,
		provider: &fakeProvider{
			purchase: &carriers.Label{
				TransactionID:  "txn_1",
				Status:         carriers.StatusSuccess,
				LabelURL:       "https://deliver.goshippo.com/label.pdf",
				TrackingNumber: "9400111",
				Carrier:        "USPS",
				Service:        "Priority Mail",
				AmountCents:    845,
				Currency:       "USD",
			},
		},
		mailer:    &stubMailer{},
		shipments: shipments.NewRepository(conn),
		order:     order,
	}
	h.params = ServiceParams{
		Provider:     h.provider,
		Orders:       orders.NewRepository(conn),
		Packages:     pkgSvc,
		Settings:     settingsSvc,
		Shipments:    h.shipments,
		Tx:           db.Wrap(conn),
		Mailer:       h.mailer,
		PollAttempts: 6,
		PollInterval: time.Millisecond,
		Clock:        func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) },
		Sleep: func(ctx context.Context, _ time.Duration) error {
			h.sleeps++
			return ctx.Err()
		},
	}
	return h
}

func (h *harness) service(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(h.params)
	require.NoError(t, err)
	return svc
}

func (h *harness) shipmentCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(&models.Shipment{}).Where("order_id = ?", h.order.ID).Count(&n).Error)
	return n
}

func (h *harness) reloadOrder(t *testing.T) models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, h.conn.Where("id = ?", h.order.ID).First(&o).Error)
	return o
}

// flakyShipments fails Create until failures reaches zero.
type flakyShipments struct {
	shipments.Repository
	failures *int
}

func (f flakyShipments) WithTx(tx *gorm.DB) shipments.Repository {
	return flakyShipments{Repository: f.Repository.WithTx(tx), failures: f.failures}
}

func (f flakyShipments) Create(ctx context.Context, shipment *models.Shipment) error {
	if *f.failures > 0 {
		*f.failures--
		return errors.New("connection reset by peer")
	}
	return f.Repository.Create(ctx, shipment)
}
