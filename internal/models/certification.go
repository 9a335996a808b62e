package models

import "encoding/json"

// Operation results and diagnostics returned by the certification endpoint.
const (
	ResultAccepted = "01"
	ResultRejected = "02"

	// DiagnosticUnavailable covers duplicate in-flight submissions and non business days.
	DiagnosticUnavailable = "532"
	// DiagnosticInternalError covers any unexpected failure.
	DiagnosticInternalError = "999"
)

// CertificationRequest is the inbound certification validation request.
type CertificationRequest struct {
	FolioTramiteProcesar             string      `json:"folioTramiteProcesar"`
	NSS                              string      `json:"nss"`
	CURP                             string      `json:"curp"`
	NombreTrabajador                 string      `json:"nombreTrabajador"`
	ApellidoPaterno                  string      `json:"apellidoPaterno"`
	ApellidoMaterno                  string      `json:"apellidoMaterno"`
	TipoPrestacion                   string      `json:"tipoPrestacion"`
	ClaveAdminActual                 string      `json:"claveAdminActual"`
	Origen                           json.Number `json:"origen,omitempty"`
	IDSolicitante                    string      `json:"idSolicitante"`
	CURPSolicitante                  string      `json:"curpSolicitante"`
	SelloTrabajador                  *int64      `json:"selloTrabajador,omitempty"`
	CURPAgenteServicio               string      `json:"curpAgenteServicio"`
	NombreTrabajadorIMSS             string      `json:"nombreTrabajadorImss"`
	NombreTrabProcanase              string      `json:"nombreTrabProcanase"`
	Estatus20600                     string      `json:"estatus20600"`
	Estatus20700                     string      `json:"estatus20700"`
	Estatus                          *int64      `json:"estatus,omitempty"`
	ConsultaCertificadoIMSS          bool        `json:"consultaCertificadoImss"`
	NuevoRechazoJ62                  bool        `json:"nuevoRechazoJ62"`
	Operacion                        string      `json:"operacion"`
	FolioOperacionIMSS               string      `json:"folioOperacionIMSS"`
	IndicadorOrigenTramite           string      `json:"indicadorOrigenTramite"`
	FechaConclusionVigencia          string      `json:"fechaConclusionVigencia"`
	ExisteCertificado                *bool       `json:"existeCertificado,omitempty"`
	FechaFinVigencia                 string      `json:"fechaFinVigencia"`
	DiagnosticoCertificadoEncontrado string      `json:"diagnosticoCertificadoEncontrado"`
	DiagnosticoOriginal              string      `json:"diagnosticoOriginal"`
	DiagnosticoInicial               string      `json:"diagnosticoInicial"`
	UltimoSarioIMSS                  json.Number `json:"ultimoSarioImss,omitempty"`
}

// CertificationResponse is the result returned to the caller.
type CertificationResponse struct {
	ResultadoOperacion      string `json:"resultadoOperacion"`
	DiagnosticoProcesar     string `json:"diagnosticoProcesar"`
	TipoTramite             string `json:"tipoTramite,omitempty"`
	NSS                     string `json:"nss,omitempty"`
	CURP                    string `json:"curp,omitempty"`
	NombreTrabajadorIMSS    string `json:"nombreTrabajadorImss,omitempty"`
	NombreTrabajador        string `json:"nombreTrabajador,omitempty"`
	ApellidoPaterno         string `json:"apellidoPaterno,omitempty"`
	ApellidoMaterno         string `json:"apellidoMaterno,omitempty"`
	TipoPrestacion          string `json:"tipoPrestacion"`
	FechaConclusionVigencia string `json:"fechaConclusionVigencia,omitempty"`
	FolioOperacionIMSS      string `json:"folioOperacionIMSS,omitempty"`
	ClaveAdminActual        string `json:"claveAdminActual,omitempty"`
	Origen                  string `json:"origen,omitempty"`
	IDSolicitante           string `json:"idSolicitante,omitempty"`
	CURPSolicitante         string `json:"curpSolicitante,omitempty"`
	CURPAgenteServicio      string `json:"curpAgenteServicio,omitempty"`
}

// RejectedResponse builds a rejection carrying the given diagnostic.
func RejectedResponse(request *CertificationRequest, diagnostic string) *CertificationResponse {
	return &CertificationResponse{
		ResultadoOperacion:  ResultRejected,
		DiagnosticoProcesar: diagnostic,
		TipoPrestacion:      request.TipoPrestacion,
	}
}

// CertificationValidator runs the business validation of a request.
type CertificationValidator interface {
	Validate(request *CertificationRequest) (*CertificationResponse, error)
}
