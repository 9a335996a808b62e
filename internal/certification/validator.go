package certification

import (
	"github.com/lockguard/lockguard/internal/models"
	"github.com/lockguard/lockguard/pkg/validation"
)

const (
	// DiagnosticValid is returned with ResultAccepted.
	DiagnosticValid = "000"
	// DiagnosticInvalidWorker is returned when the NSS or CURP is malformed.
	DiagnosticInvalidWorker = "501"
)

// DefaultValidator checks the worker identifiers and echoes the request back.
// Deployments with a real certification backend plug their own
// models.CertificationValidator into the Service instead.
type DefaultValidator struct{}

func (DefaultValidator) Validate(request *models.CertificationRequest) (*models.CertificationResponse, error) {
	if err := validation.ValidateNSS(request.NSS); err != nil {
		return models.RejectedResponse(request, DiagnosticInvalidWorker), nil
	}
	curp, err := validation.ValidateAndNormalizeCURP(request.CURP)
	if err != nil {
		return models.RejectedResponse(request, DiagnosticInvalidWorker), nil
	}

	return &models.CertificationResponse{
		ResultadoOperacion:      models.ResultAccepted,
		DiagnosticoProcesar:     DiagnosticValid,
		TipoTramite:             request.Operacion,
		NSS:                     request.NSS,
		CURP:                    curp,
		NombreTrabajadorIMSS:    request.NombreTrabajadorIMSS,
		NombreTrabajador:        request.NombreTrabajador,
		ApellidoPaterno:         request.ApellidoPaterno,
		ApellidoMaterno:         request.ApellidoMaterno,
		TipoPrestacion:          request.TipoPrestacion,
		FechaConclusionVigencia: request.FechaConclusionVigencia,
		FolioOperacionIMSS:      request.FolioOperacionIMSS,
		ClaveAdminActual:        request.ClaveAdminActual,
		Origen:                  request.Origen.String(),
		IDSolicitante:           request.IDSolicitante,
		CURPSolicitante:         request.CURPSolicitante,
		CURPAgenteServicio:      request.CURPAgenteServicio,
	}, nil
}
