package models

import "fmt"

// Notification is the message delivered to notification sinks.
type Notification struct {
	NSS                 string `json:"nss"`
	CURP                string `json:"curp"`
	TipoPrestacion      string `json:"tipo_prestacion"`
	ResultadoOperacion  string `json:"resultado_operacion"`
	DiagnosticoProcesar string `json:"diagnostico_procesar"`
}

// NewNotification builds the notification for a processed request.
func NewNotification(request *CertificationRequest, response *CertificationResponse) *Notification {
	return &Notification{
		NSS:                 request.NSS,
		CURP:                request.CURP,
		TipoPrestacion:      request.TipoPrestacion,
		ResultadoOperacion:  response.ResultadoOperacion,
		DiagnosticoProcesar: response.DiagnosticoProcesar,
	}
}

func (n *Notification) String() string {
	return fmt.Sprintf("Certification %s for NSS %s (CURP %s): result %s, diagnostic %s",
		n.TipoPrestacion, n.NSS, n.CURP, n.ResultadoOperacion, n.DiagnosticoProcesar)
}
