// Package gateway contains the outbound HTTP clients of the compliance
// engine: the tax authority submission endpoint and the CRM invoice source.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/beevik/etree"
	verifactu "github.com/factuhub/backend/internal/domain/verifactu"
	infraconfig "github.com/factuhub/backend/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Ensure AEATGateway implements verifactu.TransmissionGateway
var _ verifactu.TransmissionGateway = (*AEATGateway)(nil)

// AEATGateway submits registry entry batches to the tax authority's
// VERI*FACTU endpoint. The testing and production environments are separate
// URLs with identical wire formats; the batch's Environment field selects
// which one a request goes to.
type AEATGateway struct {
	config     *infraconfig.GatewayConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAEATGateway creates a new AEAT gateway
func NewAEATGateway(config *infraconfig.GatewayConfig, logger *zap.Logger) *AEATGateway {
	return &AEATGateway{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger.Named("aeat-gateway"),
	}
}

// Submit posts the batch and maps the per-record verdicts back to entries.
// A transport or envelope-level failure returns an error; the caller treats
// it as transient for every entry in the batch.
func (g *AEATGateway) Submit(ctx context.Context, batch verifactu.SubmissionBatch) ([]verifactu.SubmissionResult, error) {
	if len(batch.Items) == 0 {
		return nil, nil
	}

	envelope, err := buildEnvelope(batch)
	if err != nil {
		return nil, fmt.Errorf("build submission envelope: %w", err)
	}

	endpoint := g.endpointFor(batch.Environment)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")

	g.logger.Debug("Submitting registry batch",
		zap.String("tenant_id", batch.TenantID.String()),
		zap.String("environment", string(batch.Environment)),
		zap.Int("items", len(batch.Items)),
	)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aeat: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("aeat: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("aeat: unexpected status %d", resp.StatusCode)
	}

	results, err := parseResponse(body, batch)
	if err != nil {
		return nil, fmt.Errorf("aeat: parse response: %w", err)
	}

	g.logger.Info("Registry batch submitted",
		zap.String("tenant_id", batch.TenantID.String()),
		zap.Int("items", len(batch.Items)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func (g *AEATGateway) endpointFor(env verifactu.Environment) string {
	if env == verifactu.EnvironmentProduction {
		return g.config.ProductionURL
	}
	return g.config.TestingURL
}

// buildEnvelope wraps the already-signed per-entry documents in the batch
// submission element. The signed XML is embedded verbatim; re-serializing it
// would break the enveloped signatures.
func buildEnvelope(batch verifactu.SubmissionBatch) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("RegFactuSistemaFacturacion")
	cabecera := root.CreateElement("Cabecera")
	cabecera.CreateElement("IDVersion").SetText("1.0")
	cabecera.CreateElement("RemisionRequerimiento").SetText("N")

	registros := root.CreateElement("RegistroFactura")
	for _, item := range batch.Items {
		inner := etree.NewDocument()
		if err := inner.ReadFromBytes(item.SignedXML); err != nil {
			return nil, fmt.Errorf("signed document for entry %s is not valid XML: %w", item.EntryID, err)
		}
		wrapper := registros.CreateElement("Registro")
		wrapper.CreateAttr("Id", item.EntryID.String())
		wrapper.AddChild(inner.Root().Copy())
	}

	return doc.WriteToBytes()
}

// parseResponse maps the authority's per-line verdicts back onto entry IDs.
// Lines the authority did not answer are simply absent from the result set;
// the worker fails those transiently.
func parseResponse(body []byte, batch verifactu.SubmissionBatch) ([]verifactu.SubmissionResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty response document")
	}

	// Envelope-level rejection applies to the whole batch and is transient
	// from the caller's point of view (e.g. authority overload).
	if estado := childText(root, "EstadoEnvio"); estado == "Incorrecto" {
		return nil, fmt.Errorf("envelope rejected: %s", childText(root, "DescripcionErrorEnvio"))
	}

	var results []verifactu.SubmissionResult
	for _, linea := range root.FindElements("//RespuestaLinea") {
		entryID, err := uuid.Parse(childText(linea, "IDRegistro"))
		if err != nil {
			continue
		}
		estado := childText(linea, "EstadoRegistro")
		result := verifactu.SubmissionResult{EntryID: entryID}
		switch estado {
		case "Correcto", "AceptadoConErrores":
			result.Accepted = true
			result.ConfirmationCode = childText(linea, "CSV")
			result.QRURL = childText(linea, "URLVerificacion")
		default:
			result.RejectionReason = rejectionReason(linea)
		}
		results = append(results, result)
	}
	return results, nil
}

func rejectionReason(linea *etree.Element) string {
	code := childText(linea, "CodigoErrorRegistro")
	desc := childText(linea, "DescripcionErrorRegistro")
	if code == "" {
		if desc == "" {
			return "rejected without error detail"
		}
		return desc
	}
	return fmt.Sprintf("[%s] %s", code, desc)
}

func childText(parent *etree.Element, tag string) string {
	if child := parent.FindElement(tag); child != nil {
		return child.Text()
	}
	return ""
}
