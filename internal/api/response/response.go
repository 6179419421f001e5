package response

import (
	"encoding/json"
	"net/http"

	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// StatusFor maps a failure kind onto an HTTP status.
func StatusFor(kind string) int {
	switch svcerr.Kind(kind) {
	case svcerr.KindConfiguration:
		return http.StatusBadRequest
	case svcerr.KindClusterNotFound:
		return http.StatusNotFound
	case svcerr.KindMissingDependency:
		return http.StatusConflict
	case svcerr.KindConnectivity:
		return http.StatusBadGateway
	case svcerr.KindTimedOut:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteReport writes a reconciliation report. Failed reports use the status
// of their failure kind; the body is the report either way.
func WriteReport(w http.ResponseWriter, rep *model.Report) {
	status := http.StatusOK
	if rep.Error != nil {
		status = StatusFor(rep.Error.Kind)
	}
	WriteJSON(w, status, rep)
}

// WriteServiceError writes err with the status of its kind.
func WriteServiceError(w http.ResponseWriter, err error) {
	WriteError(w, StatusFor(string(svcerr.KindOf(err))), err.Error())
}
