package verifactu

import (
	"context"
	"errors"
	"fmt"

	"github.com/factuhub/backend/internal/domain/shared"
	domain "github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sequenceAllocationRetries = 3

// RegistryService owns the ledger: it appends registry entries for invoice
// events and executes the operator commands (activate, retry) plus the query
// surface. Appending is serialized per tenant through the chain appender;
// everything else is lock-free.
type RegistryService struct {
	entries  domain.RegistryEntryRepository
	configs  domain.TenantConfigRepository
	events   domain.TransmissionEventRepository
	appender domain.ChainAppender
	certs    domain.CertificateStore
	signer   domain.DocumentSigner
	qr       domain.QRCodec
	blobs    domain.BlobStore
	invoices domain.InvoiceEventSource
	clock    Clock
	metrics  *Metrics
	logger   *zap.Logger
}

// NewRegistryService creates a new RegistryService
func NewRegistryService(
	entries domain.RegistryEntryRepository,
	configs domain.TenantConfigRepository,
	events domain.TransmissionEventRepository,
	appender domain.ChainAppender,
	certs domain.CertificateStore,
	signer domain.DocumentSigner,
	qr domain.QRCodec,
	blobs domain.BlobStore,
	invoices domain.InvoiceEventSource,
	clock Clock,
	metrics *Metrics,
	logger *zap.Logger,
) *RegistryService {
	return &RegistryService{
		entries:  entries,
		configs:  configs,
		events:   events,
		appender: appender,
		certs:    certs,
		signer:   signer,
		qr:       qr,
		blobs:    blobs,
		invoices: invoices,
		clock:    clock,
		metrics:  metrics,
		logger:   logger.Named("registry"),
	}
}

// Append records an invoice event in the ledger. The sequence number, the
// chain head and the persisted row all live in one appender transaction, so
// concurrent appends for the same tenant can neither fork the chain nor
// leave a sequence gap. A missing, invalid or expired certificate never
// fails the append; the entry is recorded unsignable with status ERROR so
// the business invoice is not blocked by the compliance subsystem.
func (s *RegistryService) Append(ctx context.Context, event domain.InvoiceEvent) (*domain.RegistryEntry, error) {
	if err := validateEvent(&event); err != nil {
		return nil, err
	}

	cfg, err := s.configs.FindByTenant(ctx, event.TenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, domain.ErrTenantNotConfigured
		}
		return nil, fmt.Errorf("load tenant config: %w", err)
	}
	if !cfg.Enabled {
		return nil, shared.ErrTenantDisabled
	}

	entry, err := s.appendChained(ctx, cfg, event)
	if err != nil {
		return nil, err
	}

	if entry.Unsignable {
		s.recordEvent(ctx, entry, domain.EventKindCertificateBlocked, entry.ErrorMessage, "")
		s.logger.Warn("Registry entry recorded unsignable",
			zap.String("tenant_id", event.TenantID.String()),
			zap.Int64("sequence", entry.SequenceNumber),
			zap.String("reason", entry.ErrorMessage),
		)
	}

	s.metrics.EntriesAppended.WithLabelValues(entry.Status.String()).Inc()
	s.logger.Info("Registry entry appended",
		zap.String("tenant_id", event.TenantID.String()),
		zap.String("invoice_id", event.InvoiceID.String()),
		zap.Int64("sequence", entry.SequenceNumber),
		zap.String("status", entry.Status.String()),
	)
	return entry, nil
}

// appendChained builds and persists the next entry through the appender,
// retrying on sequence conflicts. Hashing, signing and the QR payload all
// happen inside the append transaction; a rolled-back attempt leaves no
// trace in the ledger.
func (s *RegistryService) appendChained(ctx context.Context, cfg *domain.TenantConfig, event domain.InvoiceEvent) (*domain.RegistryEntry, error) {
	var lastErr error
	for attempt := 0; attempt < sequenceAllocationRetries; attempt++ {
		entry, err := s.appender.AppendNext(ctx, event.TenantID, func(seq int64, prevHash []byte) (*domain.RegistryEntry, error) {
			hash := domain.ComputeHash(prevHash, domain.ChainFields{
				TenantID:      event.TenantID,
				InvoiceID:     event.InvoiceID,
				InvoiceNumber: event.InvoiceNumber,
				Direction:     event.Direction,
				Sequence:      seq,
				IssueDate:     event.IssueDate,
				Total:         event.Totals.Total,
			})
			entry := domain.NewRegistryEntry(event, seq, prevHash, hash, cfg.InitialEntryStatus())
			entry.QRPayload = s.qr.BuildPayload(&event, entry, cfg.Environment)
			entry.QRURL = entry.QRPayload

			if signErr := s.signAndStore(ctx, &event, entry); signErr != nil {
				entry.MarkUnsignable(signErr.Error())
			}
			return entry, nil
		})
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, domain.ErrSequenceConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// Activate transitions a dormant entry into the pending pool. Operator
// command; invalid from any other status.
func (s *RegistryService) Activate(ctx context.Context, tenantID, entryID uuid.UUID, actor string) (*domain.RegistryEntry, error) {
	entry, err := s.entries.FindByIDForTenant(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if err := entry.Activate(s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("persist activation: %w", err)
	}
	s.recordEvent(ctx, entry, domain.EventKindRequirementActivation, "entry activated for transmission", actor)
	return entry, nil
}

// MarkForRetry resets an errored entry back to pending, clearing its backoff
// window. Operator command; rejected entries stay rejected.
func (s *RegistryService) MarkForRetry(ctx context.Context, tenantID, entryID uuid.UUID, actor string) (*domain.RegistryEntry, error) {
	entry, err := s.entries.FindByIDForTenant(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}

	// An unsignable entry can only be retried once the certificate works
	// again: re-sign before releasing it to the worker.
	if entry.Unsignable {
		if err := s.resign(ctx, entry); err != nil {
			return nil, err
		}
	}

	if err := entry.MarkForRetry(); err != nil {
		return nil, err
	}
	if err := s.entries.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("persist retry: %w", err)
	}
	s.recordEvent(ctx, entry, domain.EventKindRetry, "manual retry requested", actor)
	return entry, nil
}

// ListEntries returns a page of the tenant's ledger
func (s *RegistryService) ListEntries(ctx context.Context, tenantID uuid.UUID, filter domain.EntryFilter) (*shared.Paginated[domain.RegistryEntry], error) {
	entries, total, err := s.entries.ListForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(entries, total, filter.Page, filter.Limit())
	return &page, nil
}

// GetStats returns the tenant's per-status entry counts
func (s *RegistryService) GetStats(ctx context.Context, tenantID uuid.UUID) (domain.StatusCounts, error) {
	return s.entries.CountByStatus(ctx, tenantID)
}

// GetEntry returns a single entry scoped to the tenant
func (s *RegistryService) GetEntry(ctx context.Context, tenantID, entryID uuid.UUID) (*domain.RegistryEntry, error) {
	return s.entries.FindByIDForTenant(ctx, tenantID, entryID)
}

// GetEvents returns the audit trail of an entry
func (s *RegistryService) GetEvents(ctx context.Context, tenantID, entryID uuid.UUID) ([]domain.TransmissionEvent, error) {
	if _, err := s.entries.FindByIDForTenant(ctx, tenantID, entryID); err != nil {
		return nil, err
	}
	return s.events.ListForEntry(ctx, entryID)
}

// VerifyChain replays the tenant's full hash chain and reports whether every
// link reproduces. Audit surface, independent of the append path.
func (s *RegistryService) VerifyChain(ctx context.Context, tenantID uuid.UUID) (int, error) {
	entries, err := s.entries.FindChain(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	links := make([]domain.ChainLink, len(entries))
	for i := range entries {
		links[i] = entries[i].ChainLink()
	}
	if err := domain.VerifyChain(links); err != nil {
		return len(links), err
	}
	return len(links), nil
}

// signAndStore signs the registry document and uploads the blob. Returns the
// reason when the entry cannot be signed; the caller degrades the entry
// instead of failing the append.
func (s *RegistryService) signAndStore(ctx context.Context, event *domain.InvoiceEvent, entry *domain.RegistryEntry) error {
	cert, err := s.certs.Load(ctx, event.TenantID)
	if err != nil {
		return err
	}

	doc, err := s.signer.Sign(event, entry, cert)
	if err != nil {
		return fmt.Errorf("sign registry document: %w", err)
	}

	key := fmt.Sprintf("verifactu/%s/%020d.xml", event.TenantID, entry.SequenceNumber)
	if err := s.blobs.Put(ctx, key, doc.XML, "application/xml"); err != nil {
		return fmt.Errorf("store signed document: %w", err)
	}
	entry.SignedXMLRef = key
	return nil
}

// resign rebuilds the signed document for an entry that was recorded
// unsignable. The invoice content is replayed from the CRM; the hash chain
// is untouched because the canonical fields were frozen at append time.
func (s *RegistryService) resign(ctx context.Context, entry *domain.RegistryEntry) error {
	event, err := s.invoices.Fetch(ctx, entry.TenantID, entry.InvoiceID)
	if err != nil {
		return fmt.Errorf("fetch invoice for re-sign: %w", err)
	}
	if err := s.signAndStore(ctx, event, entry); err != nil {
		return err
	}
	entry.Unsignable = false
	return nil
}

func (s *RegistryService) recordEvent(ctx context.Context, entry *domain.RegistryEntry, kind domain.EventKind, details, actor string) {
	event := domain.NewTransmissionEvent(entry.TenantID, entry.ID, kind, details, actor)
	if err := s.events.Create(ctx, event); err != nil {
		// The audit trail must never fail the command itself.
		s.logger.Error("Failed to record transmission event",
			zap.String("entry_id", entry.ID.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

func validateEvent(event *domain.InvoiceEvent) error {
	if event.TenantID == uuid.Nil || event.InvoiceID == uuid.Nil {
		return shared.ErrInvalidInput
	}
	if event.InvoiceNumber == "" || !event.Direction.IsValid() || event.IssueDate.IsZero() {
		return shared.ErrInvalidInput
	}
	return nil
}
