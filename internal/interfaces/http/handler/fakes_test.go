package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	verifactuapp "github.com/factuhub/backend/internal/application/verifactu"
	"github.com/factuhub/backend/internal/domain/shared"
	domain "github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/google/uuid"
)

// In-memory fakes backing the handler tests. Handlers are exercised through
// real application services wired onto these.

type fakeEntryRepo struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*domain.RegistryEntry
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[uuid.UUID]*domain.RegistryEntry)}
}

func (r *fakeEntryRepo) Create(ctx context.Context, entry *domain.RegistryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *entry
	r.entries[entry.ID] = &copied
	return nil
}

func (r *fakeEntryRepo) Update(ctx context.Context, entry *domain.RegistryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[entry.ID]; !ok {
		return shared.ErrNotFound
	}
	copied := *entry
	r.entries[entry.ID] = &copied
	return nil
}

func (r *fakeEntryRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[id]; ok {
		copied := *entry
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeEntryRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*domain.RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[id]; ok && entry.TenantID == tenantID {
		copied := *entry
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeEntryRepo) FindChainHead(ctx context.Context, tenantID uuid.UUID) (*domain.RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var head *domain.RegistryEntry
	for _, entry := range r.entries {
		if entry.TenantID != tenantID {
			continue
		}
		if head == nil || entry.SequenceNumber > head.SequenceNumber {
			head = entry
		}
	}
	if head == nil {
		return nil, shared.ErrNotFound
	}
	copied := *head
	return &copied, nil
}

func (r *fakeEntryRepo) FindEligible(ctx context.Context, tenantID uuid.UUID, now time.Time, limit int) ([]domain.RegistryEntry, error) {
	chain, err := r.FindChain(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	eligible := make([]domain.RegistryEntry, 0)
	for _, entry := range chain {
		if entry.Status != domain.EntryStatusPending {
			continue
		}
		if entry.NextRetryAt != nil && now.Before(*entry.NextRetryAt) {
			continue
		}
		eligible = append(eligible, entry)
		if len(eligible) == limit {
			break
		}
	}
	return eligible, nil
}

func (r *fakeEntryRepo) TenantsWithEligible(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var tenants []uuid.UUID
	for _, entry := range r.entries {
		if entry.Status == domain.EntryStatusPending && !seen[entry.TenantID] {
			seen[entry.TenantID] = true
			tenants = append(tenants, entry.TenantID)
		}
	}
	return tenants, nil
}

func (r *fakeEntryRepo) FindChain(ctx context.Context, tenantID uuid.UUID) ([]domain.RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var chain []domain.RegistryEntry
	for _, entry := range r.entries {
		if entry.TenantID == tenantID {
			chain = append(chain, *entry)
		}
	}
	sort.Slice(chain, func(i, j int) bool {
		return chain[i].SequenceNumber < chain[j].SequenceNumber
	})
	return chain, nil
}

func (r *fakeEntryRepo) ListForTenant(ctx context.Context, tenantID uuid.UUID, filter domain.EntryFilter) ([]domain.RegistryEntry, int64, error) {
	chain, err := r.FindChain(ctx, tenantID)
	if err != nil {
		return nil, 0, err
	}
	filtered := make([]domain.RegistryEntry, 0, len(chain))
	for _, entry := range chain {
		if filter.Status != nil && entry.Status != *filter.Status {
			continue
		}
		if filter.Direction != nil && entry.Direction != *filter.Direction {
			continue
		}
		filtered = append(filtered, entry)
	}
	return filtered, int64(len(filtered)), nil
}

func (r *fakeEntryRepo) CountByStatus(ctx context.Context, tenantID uuid.UUID) (domain.StatusCounts, error) {
	chain, err := r.FindChain(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	counts := make(domain.StatusCounts)
	for _, entry := range chain {
		counts[entry.Status]++
	}
	return counts, nil
}

type fakeConfigRepo struct {
	mu      sync.Mutex
	configs map[uuid.UUID]*domain.TenantConfig
}

func newFakeConfigRepo() *fakeConfigRepo {
	return &fakeConfigRepo{configs: make(map[uuid.UUID]*domain.TenantConfig)}
}

func (r *fakeConfigRepo) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.TenantConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg, ok := r.configs[tenantID]; ok {
		copied := *cfg
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (r *fakeConfigRepo) Save(ctx context.Context, config *domain.TenantConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *config
	r.configs[config.TenantID] = &copied
	return nil
}

func (r *fakeConfigRepo) FindEnabled(ctx context.Context) ([]domain.TenantConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var enabled []domain.TenantConfig
	for _, cfg := range r.configs {
		if cfg.Enabled {
			enabled = append(enabled, *cfg)
		}
	}
	return enabled, nil
}

func (r *fakeConfigRepo) RecordSubmission(ctx context.Context, tenantID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg, ok := r.configs[tenantID]; ok {
		cfg.RecordSubmissionAttempt(at)
		return nil
	}
	return shared.ErrNotFound
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []domain.TransmissionEvent
}

func (r *fakeEventRepo) Create(ctx context.Context, event *domain.TransmissionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
	return nil
}

func (r *fakeEventRepo) ListForEntry(ctx context.Context, entryID uuid.UUID) ([]domain.TransmissionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TransmissionEvent
	for _, e := range r.events {
		if e.EntryID == entryID {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeAppender extends the chain through the entry repo the way the
// transactional appender does: sequence allocation, head read and insert
// happen as one step under the mutex, and a failed build consumes nothing.
type fakeAppender struct {
	mu      sync.Mutex
	entries *fakeEntryRepo
	next    map[uuid.UUID]int64
}

func newFakeAppender(entries *fakeEntryRepo) *fakeAppender {
	return &fakeAppender{entries: entries, next: make(map[uuid.UUID]int64)}
}

func (a *fakeAppender) AppendNext(ctx context.Context, tenantID uuid.UUID, build func(seq int64, prevHash []byte) (*domain.RegistryEntry, error)) (*domain.RegistryEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var prevHash []byte
	head, err := a.entries.FindChainHead(ctx, tenantID)
	switch {
	case err == nil:
		prevHash = head.CurrentHash
	case errors.Is(err, shared.ErrNotFound):
	default:
		return nil, err
	}
	entry, err := build(a.next[tenantID]+1, prevHash)
	if err != nil {
		return nil, err
	}
	if err := a.entries.Create(ctx, entry); err != nil {
		return nil, err
	}
	a.next[tenantID]++
	return entry, nil
}

// fakeCertStore doubles as CertificateStore and CertificateRepository so the
// monitor sees the same records the store writes.
type fakeCertStore struct {
	mu      sync.Mutex
	loadErr error
	certs   map[uuid.UUID]*domain.Certificate
	records map[uuid.UUID]*domain.CertificateRecord
}

func newFakeCertStore() *fakeCertStore {
	return &fakeCertStore{
		certs:   make(map[uuid.UUID]*domain.Certificate),
		records: make(map[uuid.UUID]*domain.CertificateRecord),
	}
}

func (s *fakeCertStore) Load(ctx context.Context, tenantID uuid.UUID) (*domain.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if cert, ok := s.certs[tenantID]; ok {
		return cert, nil
	}
	return nil, domain.ErrCertificateMissing
}

func (s *fakeCertStore) Store(ctx context.Context, tenantID uuid.UUID, container []byte, password string) (*domain.Certificate, error) {
	if len(container) == 0 || password == "" {
		return nil, domain.ErrInvalidCertificate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cert := &domain.Certificate{
		TenantID:  tenantID,
		Subject:   "CN=Test Seal",
		Issuer:    "CN=Test CA",
		NotBefore: time.Now().Add(-time.Hour),
		NotAfter:  time.Now().Add(365 * 24 * time.Hour),
	}
	s.certs[tenantID] = cert
	record := &domain.CertificateRecord{
		Subject:    cert.Subject,
		Issuer:     cert.Issuer,
		NotBefore:  cert.NotBefore,
		NotAfter:   cert.NotAfter,
		UploadedAt: time.Now(),
	}
	record.TenantID = tenantID
	s.records[tenantID] = record
	return cert, nil
}

// seed installs a valid certificate without going through Store.
func (s *fakeCertStore) seed(tenantID uuid.UUID) {
	_, _ = s.Store(context.Background(), tenantID, []byte("container"), "secret")
}

func (s *fakeCertStore) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*domain.CertificateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[tenantID]; ok {
		copied := *record
		return &copied, nil
	}
	return nil, shared.ErrNotFound
}

func (s *fakeCertStore) Save(ctx context.Context, record *domain.CertificateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.records[record.TenantID] = &copied
	return nil
}

func (s *fakeCertStore) ListAll(ctx context.Context) ([]domain.CertificateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CertificateRecord
	for _, record := range s.records {
		out = append(out, *record)
	}
	return out, nil
}

type fakeSigner struct{}

func (fakeSigner) Sign(event *domain.InvoiceEvent, entry *domain.RegistryEntry, cert *domain.Certificate) (*domain.SignedDocument, error) {
	return &domain.SignedDocument{
		XML:        []byte("<RegistroAlta/>"),
		DigestHex:  "deadbeef",
		SignerName: cert.Subject,
	}, nil
}

type fakeQR struct{}

func (fakeQR) BuildPayload(event *domain.InvoiceEvent, entry *domain.RegistryEntry, env domain.Environment) string {
	return fmt.Sprintf("https://verify.example/?nf=%s&seq=%d", event.InvoiceNumber, entry.SequenceNumber)
}

func (fakeQR) Render(payload string) ([]byte, error) {
	return []byte("png"), nil
}

type fakeInvoiceSource struct {
	mu     sync.Mutex
	events map[uuid.UUID]*domain.InvoiceEvent
}

func newFakeInvoiceSource() *fakeInvoiceSource {
	return &fakeInvoiceSource{events: make(map[uuid.UUID]*domain.InvoiceEvent)}
}

func (s *fakeInvoiceSource) Fetch(ctx context.Context, tenantID, invoiceID uuid.UUID) (*domain.InvoiceEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event, ok := s.events[invoiceID]; ok && event.TenantID == tenantID {
		return event, nil
	}
	return nil, shared.ErrNotFound
}

var _ domain.RegistryEntryRepository = (*fakeEntryRepo)(nil)
var _ domain.TenantConfigRepository = (*fakeConfigRepo)(nil)
var _ domain.TransmissionEventRepository = (*fakeEventRepo)(nil)
var _ domain.ChainAppender = (*fakeAppender)(nil)
var _ domain.CertificateStore = (*fakeCertStore)(nil)
var _ domain.CertificateRepository = (*fakeCertStore)(nil)
var _ domain.DocumentSigner = fakeSigner{}
var _ domain.QRCodec = fakeQR{}
var _ domain.InvoiceEventSource = (*fakeInvoiceSource)(nil)
var _ verifactuapp.Clock = verifactuapp.SystemClock{}
