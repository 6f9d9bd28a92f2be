package models

import (
	"time"

	"github.com/factuhub/backend/internal/domain/verifactu"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RegistryEntryModel is the persistence model for the RegistryEntry ledger row.
type RegistryEntryModel struct {
	TenantModel
	InvoiceID     uuid.UUID                  `gorm:"type:uuid;not null;index"`
	InvoiceNumber string                     `gorm:"type:varchar(100);not null"`
	Series        string                     `gorm:"type:varchar(30)"`
	Direction     verifactu.InvoiceDirection `gorm:"type:varchar(20);not null"`
	IssueDate     time.Time                  `gorm:"not null"`
	Total         decimal.Decimal            `gorm:"type:decimal(18,4);not null"`

	SequenceNumber int64  `gorm:"not null;index"`
	PreviousHash   []byte `gorm:"type:bytea"`
	CurrentHash    []byte `gorm:"type:bytea;not null"`

	SignedXMLRef string `gorm:"column:signed_xml_ref;type:varchar(500)"`
	QRPayload    string `gorm:"column:qr_payload;type:text"`
	QRURL        string `gorm:"column:qr_url;type:varchar(500)"`
	Unsignable   bool   `gorm:"not null;default:false"`

	Status           verifactu.EntryStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	ConfirmationCode string                `gorm:"type:varchar(100)"`
	ErrorMessage     string                `gorm:"type:text"`
	RetryCount       int                   `gorm:"not null;default:0"`
	NextRetryAt      *time.Time            `gorm:"index"`
	ActivatedAt      *time.Time
	SubmittedAt      *time.Time
}

// TableName returns the table name for GORM
func (RegistryEntryModel) TableName() string {
	return "verifactu_registry_entries"
}

// UniqueSequenceIndex is the composite unique index guaranteeing that no two
// entries of a tenant share a sequence number. Created by cmd/migrate since
// the tag syntax cannot reach the embedded tenant_id column.
const UniqueSequenceIndex = "CREATE UNIQUE INDEX IF NOT EXISTS idx_entry_tenant_sequence ON verifactu_registry_entries (tenant_id, sequence_number)"

// UniqueTenantConfigIndex enforces one configuration row per tenant, which
// the upsert in the config repository relies on.
const UniqueTenantConfigIndex = "CREATE UNIQUE INDEX IF NOT EXISTS idx_config_tenant ON verifactu_tenant_configs (tenant_id)"

// UniqueTenantCertificateIndex enforces one active certificate per tenant.
const UniqueTenantCertificateIndex = "CREATE UNIQUE INDEX IF NOT EXISTS idx_certificate_tenant ON verifactu_certificates (tenant_id)"

// UniqueIndexes lists the raw composite/unique indexes applied after AutoMigrate.
var UniqueIndexes = []string{
	UniqueSequenceIndex,
	UniqueTenantConfigIndex,
	UniqueTenantCertificateIndex,
}

// ToDomain converts the persistence model to a domain RegistryEntry.
func (m *RegistryEntryModel) ToDomain() *verifactu.RegistryEntry {
	return &verifactu.RegistryEntry{
		TenantEntity:     m.TenantModel.ToDomain(),
		InvoiceID:        m.InvoiceID,
		InvoiceNumber:    m.InvoiceNumber,
		Series:           m.Series,
		Direction:        m.Direction,
		IssueDate:        m.IssueDate,
		Total:            m.Total,
		SequenceNumber:   m.SequenceNumber,
		PreviousHash:     m.PreviousHash,
		CurrentHash:      m.CurrentHash,
		SignedXMLRef:     m.SignedXMLRef,
		QRPayload:        m.QRPayload,
		QRURL:            m.QRURL,
		Unsignable:       m.Unsignable,
		Status:           m.Status,
		ConfirmationCode: m.ConfirmationCode,
		ErrorMessage:     m.ErrorMessage,
		RetryCount:       m.RetryCount,
		NextRetryAt:      m.NextRetryAt,
		ActivatedAt:      m.ActivatedAt,
		SubmittedAt:      m.SubmittedAt,
	}
}

// FromDomain populates the persistence model from a domain RegistryEntry.
func (m *RegistryEntryModel) FromDomain(e *verifactu.RegistryEntry) {
	m.TenantModel.FromDomain(e.TenantEntity)
	m.InvoiceID = e.InvoiceID
	m.InvoiceNumber = e.InvoiceNumber
	m.Series = e.Series
	m.Direction = e.Direction
	m.IssueDate = e.IssueDate
	m.Total = e.Total
	m.SequenceNumber = e.SequenceNumber
	m.PreviousHash = e.PreviousHash
	m.CurrentHash = e.CurrentHash
	m.SignedXMLRef = e.SignedXMLRef
	m.QRPayload = e.QRPayload
	m.QRURL = e.QRURL
	m.Unsignable = e.Unsignable
	m.Status = e.Status
	m.ConfirmationCode = e.ConfirmationCode
	m.ErrorMessage = e.ErrorMessage
	m.RetryCount = e.RetryCount
	m.NextRetryAt = e.NextRetryAt
	m.ActivatedAt = e.ActivatedAt
	m.SubmittedAt = e.SubmittedAt
}

// TenantConfigModel is the persistence model for TenantConfig.
type TenantConfigModel struct {
	TenantModel
	Mode                    verifactu.ComplianceMode `gorm:"type:varchar(20);not null;default:'LIVE'"`
	Environment             verifactu.Environment    `gorm:"type:varchar(20);not null;default:'TESTING'"`
	Enabled                 bool                     `gorm:"not null;default:true"`
	AutoSubmit              bool                     `gorm:"not null;default:true"`
	FlowControlSeconds      int                      `gorm:"not null;default:60"`
	MaxRecordsPerSubmission int                      `gorm:"not null;default:100"`
	LastSequenceNumber      int64                    `gorm:"not null;default:0"`
	LastSubmissionAt        *time.Time
}

// TableName returns the table name for GORM
func (TenantConfigModel) TableName() string {
	return "verifactu_tenant_configs"
}

// ToDomain converts the persistence model to a domain TenantConfig.
func (m *TenantConfigModel) ToDomain() *verifactu.TenantConfig {
	return &verifactu.TenantConfig{
		TenantEntity:            m.TenantModel.ToDomain(),
		Mode:                    m.Mode,
		Environment:             m.Environment,
		Enabled:                 m.Enabled,
		AutoSubmit:              m.AutoSubmit,
		FlowControlSeconds:      m.FlowControlSeconds,
		MaxRecordsPerSubmission: m.MaxRecordsPerSubmission,
		LastSequenceNumber:      m.LastSequenceNumber,
		LastSubmissionAt:        m.LastSubmissionAt,
	}
}

// FromDomain populates the persistence model from a domain TenantConfig.
func (m *TenantConfigModel) FromDomain(c *verifactu.TenantConfig) {
	m.TenantModel.FromDomain(c.TenantEntity)
	m.Mode = c.Mode
	m.Environment = c.Environment
	m.Enabled = c.Enabled
	m.AutoSubmit = c.AutoSubmit
	m.FlowControlSeconds = c.FlowControlSeconds
	m.MaxRecordsPerSubmission = c.MaxRecordsPerSubmission
	m.LastSequenceNumber = c.LastSequenceNumber
	m.LastSubmissionAt = c.LastSubmissionAt
}

// TransmissionEventModel is the persistence model for the append-only audit trail.
type TransmissionEventModel struct {
	ID        uuid.UUID           `gorm:"type:uuid;primary_key"`
	TenantID  uuid.UUID           `gorm:"type:uuid;not null;index"`
	EntryID   uuid.UUID           `gorm:"type:uuid;not null;index"`
	Kind      verifactu.EventKind `gorm:"type:varchar(40);not null"`
	Details   string              `gorm:"type:text"`
	Actor     string              `gorm:"type:varchar(100);not null"`
	CreatedAt time.Time           `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (TransmissionEventModel) TableName() string {
	return "verifactu_transmission_events"
}

// ToDomain converts the persistence model to a domain TransmissionEvent.
func (m *TransmissionEventModel) ToDomain() *verifactu.TransmissionEvent {
	return &verifactu.TransmissionEvent{
		ID:        m.ID,
		TenantID:  m.TenantID,
		EntryID:   m.EntryID,
		Kind:      m.Kind,
		Details:   m.Details,
		Actor:     m.Actor,
		CreatedAt: m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain TransmissionEvent.
func (m *TransmissionEventModel) FromDomain(e *verifactu.TransmissionEvent) {
	m.ID = e.ID
	m.TenantID = e.TenantID
	m.EntryID = e.EntryID
	m.Kind = e.Kind
	m.Details = e.Details
	m.Actor = e.Actor
	m.CreatedAt = e.CreatedAt
}

// CertificateRecordModel is the persistence model for encrypted certificates.
type CertificateRecordModel struct {
	TenantModel
	Container      []byte    `gorm:"type:bytea;not null"`
	SealedPassword []byte    `gorm:"type:bytea;not null"`
	Subject        string    `gorm:"type:varchar(300);not null"`
	Issuer         string    `gorm:"type:varchar(300);not null"`
	NotBefore      time.Time `gorm:"not null"`
	NotAfter       time.Time `gorm:"not null;index"`
	UploadedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CertificateRecordModel) TableName() string {
	return "verifactu_certificates"
}

// ToDomain converts the persistence model to a domain CertificateRecord.
func (m *CertificateRecordModel) ToDomain() *verifactu.CertificateRecord {
	return &verifactu.CertificateRecord{
		TenantEntity:   m.TenantModel.ToDomain(),
		Container:      m.Container,
		SealedPassword: m.SealedPassword,
		Subject:        m.Subject,
		Issuer:         m.Issuer,
		NotBefore:      m.NotBefore,
		NotAfter:       m.NotAfter,
		UploadedAt:     m.UploadedAt,
	}
}

// FromDomain populates the persistence model from a domain CertificateRecord.
func (m *CertificateRecordModel) FromDomain(r *verifactu.CertificateRecord) {
	m.TenantModel.FromDomain(r.TenantEntity)
	m.Container = r.Container
	m.SealedPassword = r.SealedPassword
	m.Subject = r.Subject
	m.Issuer = r.Issuer
	m.NotBefore = r.NotBefore
	m.NotAfter = r.NotAfter
	m.UploadedAt = r.UploadedAt
}

// AllModels returns every model for schema migration.
func AllModels() []interface{} {
	return []interface{}{
		&RegistryEntryModel{},
		&TenantConfigModel{},
		&TransmissionEventModel{},
		&CertificateRecordModel{},
	}
}
