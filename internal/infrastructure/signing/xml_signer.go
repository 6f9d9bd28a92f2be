package signing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/beevik/etree"
	"github.com/factuhub/backend/internal/domain/verifactu"
	dsig "github.com/russellhaering/goxmldsig"
)

// Ensure XMLSigner implements the domain port
var _ verifactu.DocumentSigner = (*XMLSigner)(nil)

// XMLSigner builds the regulator-mandated registry XML for an invoice event
// and attaches an enveloped XMLDSig signature produced with the tenant's
// certificate. The signer holds no mutable state: every call builds its own
// document and signing context, so it is safe for unbounded parallel use.
type XMLSigner struct{}

// NewXMLSigner creates a new XML signer
func NewXMLSigner() *XMLSigner {
	return &XMLSigner{}
}

// Sign implements verifactu.DocumentSigner.
func (s *XMLSigner) Sign(event *verifactu.InvoiceEvent, entry *verifactu.RegistryEntry, cert *verifactu.Certificate) (*verifactu.SignedDocument, error) {
	root := buildRegistryDocument(event, entry)

	unsigned, err := serialize(root)
	if err != nil {
		return nil, fmt.Errorf("serialize registry document: %w", err)
	}
	digest := sha256.Sum256(unsigned)

	signingCtx, err := dsig.NewSigningContext(cert.PrivateKey, [][]byte{cert.Leaf.Raw})
	if err != nil {
		return nil, fmt.Errorf("create signing context: %w", err)
	}

	signed, err := signingCtx.SignEnveloped(root)
	if err != nil {
		return nil, fmt.Errorf("sign registry document: %w", err)
	}

	xml, err := serialize(signed)
	if err != nil {
		return nil, fmt.Errorf("serialize signed document: %w", err)
	}

	return &verifactu.SignedDocument{
		XML:        xml,
		DigestHex:  hex.EncodeToString(digest[:]),
		SignerName: cert.Subject,
	}, nil
}

// buildRegistryDocument constructs the canonical RegistroAlta element: party
// identification, line items, tax breakdown, totals, payment means, and the
// chaining block with the previous record's hash.
func buildRegistryDocument(event *verifactu.InvoiceEvent, entry *verifactu.RegistryEntry) *etree.Element {
	root := etree.NewElement("RegistroAlta")
	root.CreateAttr("xmlns", "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd")
	root.CreateElement("IDVersion").SetText("1.0")

	id := root.CreateElement("IDFactura")
	id.CreateElement("IDEmisorFactura").SetText(event.Issuer.TaxID)
	id.CreateElement("NumSerieFactura").SetText(event.InvoiceNumber)
	id.CreateElement("FechaExpedicionFactura").SetText(event.IssueDate.Format("02-01-2006"))

	root.CreateElement("NombreRazonEmisor").SetText(event.Issuer.Name)
	root.CreateElement("TipoFactura").SetText(invoiceType(event.Direction))

	dest := root.CreateElement("Destinatarios").CreateElement("IDDestinatario")
	dest.CreateElement("NombreRazon").SetText(event.Counterparty.Name)
	dest.CreateElement("NIF").SetText(event.Counterparty.TaxID)

	desglose := root.CreateElement("Desglose")
	for _, line := range event.Lines {
		detalle := desglose.CreateElement("DetalleDesglose")
		detalle.CreateElement("Descripcion").SetText(line.Description)
		detalle.CreateElement("TipoImpositivo").SetText(line.TaxRate.StringFixed(2))
		detalle.CreateElement("BaseImponible").SetText(line.Amount.StringFixed(2))
	}

	root.CreateElement("CuotaTotal").SetText(event.Totals.TaxAmount.StringFixed(2))
	root.CreateElement("ImporteTotal").SetText(event.Totals.Total.StringFixed(2))
	if event.PaymentMeans != "" {
		root.CreateElement("MedioDePago").SetText(event.PaymentMeans)
	}

	chain := root.CreateElement("Encadenamiento")
	if len(entry.PreviousHash) == 0 {
		chain.CreateElement("PrimerRegistro").SetText("S")
	} else {
		prev := chain.CreateElement("RegistroAnterior")
		prev.CreateElement("Huella").SetText(hex.EncodeToString(entry.PreviousHash))
	}
	root.CreateElement("NumRegistro").SetText(fmt.Sprintf("%d", entry.SequenceNumber))
	root.CreateElement("TipoHuella").SetText("01") // SHA-256
	root.CreateElement("Huella").SetText(hex.EncodeToString(entry.CurrentHash))

	return root
}

func invoiceType(direction verifactu.InvoiceDirection) string {
	if direction == verifactu.DirectionReceived {
		return "F2"
	}
	return "F1"
}

func serialize(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	doc.WriteSettings.CanonicalEndTags = true
	return doc.WriteToBytes()
}
