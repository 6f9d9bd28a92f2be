package verifactu

import (
	"context"
	"sync"
	"time"

	domain "github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
)

// fakeClock is a manually advanced Clock for worker and monitor tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// MockRegistryEntryRepository is a mock implementation of domain.RegistryEntryRepository
type MockRegistryEntryRepository struct {
	mock.Mock
}

func (m *MockRegistryEntryRepository) Create(ctx context.Context, entry *domain.RegistryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRegistryEntryRepository) Update(ctx context.Context, entry *domain.RegistryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockRegistryEntryRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.RegistryEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegistryEntry), args.Error(1)
}

func (m *MockRegistryEntryRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*domain.RegistryEntry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegistryEntry), args.Error(1)
}

func (m *MockRegistryEntryRepository) FindChainHead(ctx context.Context, tenantID uuid.UUID) (*domain.RegistryEntry, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegistryEntry), args.Error(1)
}

func (m *MockRegistryEntryRepository) FindEligible(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]domain.RegistryEntry, error) {
	args := m.Called(ctx, tenantID, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RegistryEntry), args.Error(1)
}

func (m *MockRegistryEntryRepository) TenantsWithEligible(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockRegistryEntryRepository) FindChain(ctx context.Context, tenantID uuid.UUID) ([]domain.RegistryEntry, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RegistryEntry), args.Error(1)
}

func (m *MockRegistryEntryRepository) ListForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.EntryFilter) ([]domain.RegistryEntry, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.RegistryEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockRegistryEntryRepository) CountByStatus(ctx context.Context, tenantID uuid.UUID) (domain.StatusCounts, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.StatusCounts), args.Error(1)
}

// MockTenantConfigRepository is a mock implementation of domain.TenantConfigRepository
type MockTenantConfigRepository struct {
	mock.Mock
}

func (m *MockTenantConfigRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.TenantConfig, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TenantConfig), args.Error(1)
}

func (m *MockTenantConfigRepository) Save(ctx context.Context, config *domain.TenantConfig) error {
	args := m.Called(ctx, config)
	return args.Error(0)
}

func (m *MockTenantConfigRepository) FindEnabled(ctx context.Context) ([]domain.TenantConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TenantConfig), args.Error(1)
}

func (m *MockTenantConfigRepository) RecordSubmission(ctx context.Context, tenantID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, tenantID, at)
	return args.Error(0)
}

// MockTransmissionEventRepository is a mock implementation of domain.TransmissionEventRepository
type MockTransmissionEventRepository struct {
	mock.Mock
}

func (m *MockTransmissionEventRepository) Create(ctx context.Context, event *domain.TransmissionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockTransmissionEventRepository) ListForEntry(ctx context.Context, entryID uuid.UUID) ([]domain.TransmissionEvent, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TransmissionEvent), args.Error(1)
}

// fakeChainAppender drives the build callback the way the transactional
// appender does, with scripted sequence numbers, chain head and failures.
type fakeChainAppender struct {
	mu       sync.Mutex
	seq      int64
	prevHash []byte
	errs     []error
	calls    int
}

func (f *fakeChainAppender) AppendNext(ctx context.Context, tenantID uuid.UUID, build func(seq int64, prevHash []byte) (*domain.RegistryEntry, error)) (*domain.RegistryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	f.seq++
	entry, err := build(f.seq, f.prevHash)
	if err != nil {
		f.seq--
		return nil, err
	}
	f.prevHash = entry.CurrentHash
	return entry, nil
}

// MockCertificateStore is a mock implementation of domain.CertificateStore
type MockCertificateStore struct {
	mock.Mock
}

func (m *MockCertificateStore) Load(ctx context.Context, tenantID uuid.UUID) (*domain.Certificate, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Certificate), args.Error(1)
}

func (m *MockCertificateStore) Store(ctx context.Context, tenantID uuid.UUID, container []byte, password string) (*domain.Certificate, error) {
	args := m.Called(ctx, tenantID, container, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Certificate), args.Error(1)
}

// MockCertificateRepository is a mock implementation of domain.CertificateRepository
type MockCertificateRepository struct {
	mock.Mock
}

func (m *MockCertificateRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.CertificateRecord, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CertificateRecord), args.Error(1)
}

func (m *MockCertificateRepository) Save(ctx context.Context, record *domain.CertificateRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockCertificateRepository) ListAll(ctx context.Context) ([]domain.CertificateRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CertificateRecord), args.Error(1)
}

// MockDocumentSigner is a mock implementation of domain.DocumentSigner
type MockDocumentSigner struct {
	mock.Mock
}

func (m *MockDocumentSigner) Sign(event *domain.InvoiceEvent, entry *domain.RegistryEntry, cert *domain.Certificate) (*domain.SignedDocument, error) {
	args := m.Called(event, entry, cert)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SignedDocument), args.Error(1)
}

// MockQRCodec is a mock implementation of domain.QRCodec
type MockQRCodec struct {
	mock.Mock
}

func (m *MockQRCodec) BuildPayload(event *domain.InvoiceEvent, entry *domain.RegistryEntry, env domain.Environment) string {
	args := m.Called(event, entry, env)
	return args.String(0)
}

func (m *MockQRCodec) Render(payload string) ([]byte, error) {
	args := m.Called(payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockBlobStore is a mock implementation of domain.BlobStore
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockInvoiceEventSource is a mock implementation of domain.InvoiceEventSource
type MockInvoiceEventSource struct {
	mock.Mock
}

func (m *MockInvoiceEventSource) Fetch(ctx context.Context, tenantID, invoiceID uuid.UUID) (*domain.InvoiceEvent, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.InvoiceEvent), args.Error(1)
}

// MockTransmissionGateway is a mock implementation of domain.TransmissionGateway
type MockTransmissionGateway struct {
	mock.Mock
}

func (m *MockTransmissionGateway) Submit(ctx context.Context, batch domain.SubmissionBatch) ([]domain.SubmissionResult, error) {
	args := m.Called(ctx, batch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SubmissionResult), args.Error(1)
}

// staticGuard is a CertificateGuard with a fixed answer.
type staticGuard struct {
	blocked bool
	reason  string
}

func (g staticGuard) Blocked(uuid.UUID) (bool, string) {
	return g.blocked, g.reason
}
