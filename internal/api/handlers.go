package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shivortex/lead-scraper/internal/query"
)

type handlers struct {
	svc LeadService
	log *zap.Logger
}

func (h *handlers) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Lead Scraper API Running"})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.HealthCheck(r.Context()); err != nil {
		h.logError(r, "api: health check failed", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listLeads(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListLeads(r.Context(), r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handlers) getLead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeDetail(w, http.StatusNotFound, "Not found")
		return
	}

	lead, err := h.svc.GetLead(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// fail maps a service error onto its HTTP status and body.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	var qe *query.Error
	if !errors.As(err, &qe) {
		h.logError(r, "api: unclassified error", err)
		writeDetail(w, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	switch qe.Kind {
	case query.KindInvalidFilter, query.KindInvalidPagination:
		writeInvalid(w, qe.Kind, qe.Fields)
	case query.KindNotFound:
		writeDetail(w, http.StatusNotFound, "Not found")
	default:
		h.logError(r, "api: store unavailable", err)
		writeDetail(w, http.StatusServiceUnavailable, "Store unavailable")
	}
}

func (h *handlers) logError(r *http.Request, msg string, err error) {
	h.log.Error(msg,
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
}
