package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/edvin/svcctl/internal/api/request"
	"github.com/edvin/svcctl/internal/api/response"
)

type Runs struct {
	ledger Ledger
}

func NewRuns(ledger Ledger) *Runs {
	return &Runs{ledger: ledger}
}

// List returns recorded runs, newest first. Supports ?cluster=, ?service=
// and ?limit=.
func (h *Runs) List(w http.ResponseWriter, r *http.Request) {
	runs, err := h.ledger.List(r.Context(), request.ParseRunFilter(r))
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"items": runs})
}

func (h *Runs) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "runID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := h.ledger.Get(r.Context(), id)
	if errors.Is(err, pgx.ErrNoRows) {
		response.WriteError(w, http.StatusNotFound, "run not found: "+id)
		return
	}
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, run)
}
