package signing

import (
	"encoding/hex"
	"fmt"
	"net/url"

	"github.com/factuhub/backend/internal/domain/verifactu"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	qrBaseProduction = "https://www2.agenciatributaria.gob.es/wlpl/TIKE-CONT/ValidarQR"
	qrBaseTesting    = "https://prewww2.aeat.es/wlpl/TIKE-CONT/ValidarQR"

	qrImageSize = 256
)

// Ensure QRGenerator implements the domain port
var _ verifactu.QRCodec = (*QRGenerator)(nil)

// QRGenerator implements verifactu.QRCodec.
type QRGenerator struct{}

// NewQRGenerator creates a new QR generator
func NewQRGenerator() *QRGenerator {
	return &QRGenerator{}
}

// BuildPayload implements verifactu.QRCodec.
func (g *QRGenerator) BuildPayload(event *verifactu.InvoiceEvent, entry *verifactu.RegistryEntry, env verifactu.Environment) string {
	return BuildQRPayload(event, entry, env)
}

// Render implements verifactu.QRCodec.
func (g *QRGenerator) Render(payload string) ([]byte, error) {
	return RenderQR(payload)
}

// BuildQRPayload returns the authority verification URL for a registry
// entry. The payload is a deterministic function of the issuer, invoice
// identification, total amount and the entry hash prefix, so re-running it
// for the same entry always yields the same URL.
func BuildQRPayload(event *verifactu.InvoiceEvent, entry *verifactu.RegistryEntry, env verifactu.Environment) string {
	base := qrBaseTesting
	if env == verifactu.EnvironmentProduction {
		base = qrBaseProduction
	}

	params := url.Values{}
	params.Set("nif", event.Issuer.TaxID)
	params.Set("numserie", event.InvoiceNumber)
	params.Set("fecha", event.IssueDate.Format("02-01-2006"))
	params.Set("importe", event.Totals.Total.StringFixed(2))
	if len(entry.CurrentHash) >= 8 {
		params.Set("huella", hex.EncodeToString(entry.CurrentHash[:8]))
	}
	return base + "?" + params.Encode()
}

// RenderQR renders the payload as a PNG image suitable for embedding on the
// printed invoice.
func RenderQR(payload string) ([]byte, error) {
	png, err := qrcode.Encode(payload, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, fmt.Errorf("render qr image: %w", err)
	}
	return png, nil
}
