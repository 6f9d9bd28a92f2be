package verifactu

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	domain "github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WorkerConfig holds submission worker configuration
type WorkerConfig struct {
	Enabled        bool
	TickInterval   time.Duration
	GatewayTimeout time.Duration
	// MaxConcurrentTenants bounds how many tenant batches are in flight at
	// once. One batch per tenant at a time is structural: a tenant is
	// processed by at most one goroutine per tick.
	MaxConcurrentTenants int
	Backoff              BackoffPolicy
}

// DefaultWorkerConfig returns default worker configuration
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Enabled:              true,
		TickInterval:         30 * time.Second,
		GatewayTimeout:       60 * time.Second,
		MaxConcurrentTenants: 8,
		Backoff:              DefaultBackoffPolicy(),
	}
}

// CertificateGuard reports whether a tenant's certificate currently blocks
// submission. The certificate monitor maintains the answer.
type CertificateGuard interface {
	Blocked(tenantID uuid.UUID) (blocked bool, reason string)
}

// SubmissionWorker is the scheduler of the compliance engine. A fixed
// interval tick is the only scheduling primitive: each tick selects the
// eligible entries per tenant, enforces the authority's flow-control
// spacing, submits one batch per tenant and applies the resulting state
// transitions. Tenants are processed concurrently, bounded by the config.
type SubmissionWorker struct {
	config  WorkerConfig
	entries domain.RegistryEntryRepository
	configs domain.TenantConfigRepository
	events  domain.TransmissionEventRepository
	gateway domain.TransmissionGateway
	blobs   domain.BlobStore
	guard   CertificateGuard
	clock   Clock
	metrics *Metrics
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSubmissionWorker creates a new submission worker
func NewSubmissionWorker(
	config WorkerConfig,
	entries domain.RegistryEntryRepository,
	configs domain.TenantConfigRepository,
	events domain.TransmissionEventRepository,
	gateway domain.TransmissionGateway,
	blobs domain.BlobStore,
	guard CertificateGuard,
	clock Clock,
	metrics *Metrics,
	logger *zap.Logger,
) *SubmissionWorker {
	return &SubmissionWorker{
		config:  config,
		entries: entries,
		configs: configs,
		events:  events,
		gateway: gateway,
		blobs:   blobs,
		guard:   guard,
		clock:   clock,
		metrics: metrics,
		logger:  logger.Named("submission-worker"),
	}
}

// Start starts the periodic tick loop. A disabled worker never ticks;
// entries stay pending until it is re-enabled.
func (w *SubmissionWorker) Start(ctx context.Context) error {
	if !w.config.Enabled {
		w.logger.Info("Submission worker disabled by configuration")
		return nil
	}

	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = true
	w.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("Submission worker started",
		zap.Duration("tick_interval", w.config.TickInterval),
		zap.Int("max_concurrent_tenants", w.config.MaxConcurrentTenants),
	)
	return nil
}

// Stop gracefully stops the worker
func (w *SubmissionWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("Submission worker stopped")
		return nil
	case <-ctx.Done():
		w.logger.Warn("Submission worker stop timed out")
		return ctx.Err()
	}
}

func (w *SubmissionWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass. Exported so tests (and the manual trigger
// endpoint) can drive the worker without real timers.
func (w *SubmissionWorker) Tick(ctx context.Context) {
	start := time.Now()
	defer w.metrics.ObserveTick(start)

	now := w.clock.Now()
	tenants, err := w.entries.TenantsWithEligible(ctx, now)
	if err != nil {
		w.logger.Error("Failed to select tenants with eligible entries", zap.Error(err))
		return
	}
	if len(tenants) == 0 {
		return
	}

	sem := make(chan struct{}, w.config.MaxConcurrentTenants)
	var wg sync.WaitGroup
	for _, tenantID := range tenants {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()
			w.processTenant(ctx, id, now)
		}(tenantID)
	}
	wg.Wait()
}

// processTenant runs at most one submission attempt for the tenant.
func (w *SubmissionWorker) processTenant(ctx context.Context, tenantID uuid.UUID, now time.Time) {
	cfg, err := w.configs.FindByTenant(ctx, tenantID)
	if err != nil {
		w.logger.Error("Failed to load tenant config",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return
	}
	if !cfg.Enabled {
		return
	}

	// Flow control: the authority mandates a minimum spacing between
	// submissions per tenant. Manual commands re-enter the pool but never
	// bypass this window.
	if !cfg.CanSubmitAt(now) {
		return
	}

	if blocked, reason := w.guard.Blocked(tenantID); blocked {
		w.divertBlocked(ctx, tenantID, cfg, now, reason)
		return
	}

	batch, entries := w.collectBatch(ctx, tenantID, cfg, now)
	if len(entries) == 0 {
		return
	}

	if err := w.configs.RecordSubmission(ctx, tenantID, now); err != nil {
		w.logger.Error("Failed to record submission attempt",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
	}

	gwCtx, cancel := context.WithTimeout(ctx, w.config.GatewayTimeout)
	results, err := w.gateway.Submit(gwCtx, batch)
	cancel()
	if err != nil {
		// Transport failure, including timeout: never assume success.
		w.failBatch(ctx, entries, now, fmt.Sprintf("transmission failed: %v", err))
		return
	}
	w.applyResults(ctx, entries, results, now)
}

// collectBatch selects the eligible entries in sequence order and marks them
// SENDING. Entries whose signed blob cannot be loaded fail transiently on
// the spot.
func (w *SubmissionWorker) collectBatch(ctx context.Context, tenantID uuid.UUID, cfg *domain.TenantConfig, now time.Time) (domain.SubmissionBatch, []*domain.RegistryEntry) {
	batch := domain.SubmissionBatch{TenantID: tenantID, Environment: cfg.Environment}

	eligible, err := w.entries.FindEligible(ctx, tenantID, now, cfg.MaxRecordsPerSubmission)
	if err != nil {
		w.logger.Error("Failed to select eligible entries",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return batch, nil
	}
	w.metrics.EligibleBacklogGauge.Set(float64(len(eligible)))

	var inFlight []*domain.RegistryEntry
	for i := range eligible {
		entry := &eligible[i]

		// Errored entries re-enter through the pending pool once their
		// backoff window has elapsed.
		if entry.Status == domain.EntryStatusError {
			if err := entry.MarkForRetry(); err != nil {
				continue
			}
		}

		xml, err := w.blobs.Get(ctx, entry.SignedXMLRef)
		if err != nil {
			w.failEntry(ctx, entry, now, fmt.Sprintf("signed document unavailable: %v", err))
			continue
		}
		if err := entry.BeginSubmission(now); err != nil {
			continue
		}
		if err := w.entries.Update(ctx, entry); err != nil {
			w.logger.Error("Failed to mark entry sending",
				zap.String("entry_id", entry.ID.String()), zap.Error(err))
			continue
		}

		inFlight = append(inFlight, entry)
		batch.Items = append(batch.Items, domain.SubmissionItem{
			EntryID:        entry.ID,
			SequenceNumber: entry.SequenceNumber,
			HashHex:        hex.EncodeToString(entry.CurrentHash),
			SignedXML:      xml,
		})
	}
	return batch, inFlight
}

// applyResults maps the authority's per-entry verdicts onto state transitions.
func (w *SubmissionWorker) applyResults(ctx context.Context, entries []*domain.RegistryEntry, results []domain.SubmissionResult, now time.Time) {
	byEntry := make(map[uuid.UUID]domain.SubmissionResult, len(results))
	for _, r := range results {
		byEntry[r.EntryID] = r
	}

	for _, entry := range entries {
		result, ok := byEntry[entry.ID]
		switch {
		case !ok:
			w.failEntry(ctx, entry, now, "authority returned no result for entry")
		case result.Accepted:
			if err := entry.CompleteSubmission(result.ConfirmationCode, result.QRURL); err == nil {
				w.updateEntry(ctx, entry)
				w.metrics.SubmissionsTotal.WithLabelValues("sent").Inc()
				w.recordEvent(ctx, entry, domain.EventKindSubmissionAttempt,
					fmt.Sprintf("accepted, confirmation %s", result.ConfirmationCode))
			}
		default:
			if err := entry.Reject(result.RejectionReason); err == nil {
				w.updateEntry(ctx, entry)
				w.metrics.SubmissionsTotal.WithLabelValues("rejected").Inc()
				w.recordEvent(ctx, entry, domain.EventKindSubmissionAttempt,
					fmt.Sprintf("rejected: %s", result.RejectionReason))
				w.logger.Warn("Entry rejected by authority",
					zap.String("entry_id", entry.ID.String()),
					zap.String("reason", result.RejectionReason),
				)
			}
		}
	}
}

// failBatch applies the transient-failure transition to every entry of the
// batch with a shared backoff schedule.
func (w *SubmissionWorker) failBatch(ctx context.Context, entries []*domain.RegistryEntry, now time.Time, message string) {
	for _, entry := range entries {
		w.failEntry(ctx, entry, now, message)
	}
}

func (w *SubmissionWorker) failEntry(ctx context.Context, entry *domain.RegistryEntry, now time.Time, message string) {
	nextRetry := now.Add(w.config.Backoff.Delay(entry.RetryCount + 1))
	if err := entry.FailTransient(message, nextRetry); err != nil {
		return
	}
	w.updateEntry(ctx, entry)
	w.metrics.SubmissionsTotal.WithLabelValues("error").Inc()
	w.recordEvent(ctx, entry, domain.EventKindSubmissionAttempt, message)
}

// divertBlocked moves a certificate-blocked tenant's eligible entries
// straight to ERROR, independent of network state.
func (w *SubmissionWorker) divertBlocked(ctx context.Context, tenantID uuid.UUID, cfg *domain.TenantConfig, now time.Time, reason string) {
	eligible, err := w.entries.FindEligible(ctx, tenantID, now, cfg.MaxRecordsPerSubmission)
	if err != nil {
		w.logger.Error("Failed to select entries for blocked tenant",
			zap.String("tenant_id", tenantID.String()), zap.Error(err))
		return
	}
	message := fmt.Sprintf("submission blocked: %s", reason)
	for i := range eligible {
		entry := &eligible[i]
		if entry.Status == domain.EntryStatusError {
			if err := entry.MarkForRetry(); err != nil {
				continue
			}
		}
		nextRetry := now.Add(w.config.Backoff.Delay(entry.RetryCount + 1))
		if err := entry.FailTransient(message, nextRetry); err != nil {
			continue
		}
		w.updateEntry(ctx, entry)
		w.recordEvent(ctx, entry, domain.EventKindCertificateBlocked, message)
	}
	w.logger.Warn("Tenant submissions blocked by certificate",
		zap.String("tenant_id", tenantID.String()),
		zap.String("reason", reason),
		zap.Int("entries_diverted", len(eligible)),
	)
}

func (w *SubmissionWorker) updateEntry(ctx context.Context, entry *domain.RegistryEntry) {
	if err := w.entries.Update(ctx, entry); err != nil {
		w.logger.Error("Failed to persist entry transition",
			zap.String("entry_id", entry.ID.String()),
			zap.String("status", entry.Status.String()),
			zap.Error(err),
		)
	}
}

func (w *SubmissionWorker) recordEvent(ctx context.Context, entry *domain.RegistryEntry, kind domain.EventKind, details string) {
	event := domain.NewTransmissionEvent(entry.TenantID, entry.ID, kind, details, domain.SystemActor)
	if err := w.events.Create(ctx, event); err != nil {
		w.logger.Error("Failed to record transmission event",
			zap.String("entry_id", entry.ID.String()), zap.Error(err))
	}
}
