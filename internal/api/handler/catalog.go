package handler

import (
	"net/http"

	"github.com/edvin/svcctl/internal/api/response"
	"github.com/edvin/svcctl/internal/catalog"
)

// Catalog lists the service types this server can reconcile, with their
// dependencies, role groups and configuration keys.
func Catalog(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]any{"items": catalog.All()})
}
