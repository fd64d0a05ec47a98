package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	appMiddleware "github.com/markdave123-py/Careerlyst/internal/api/middlewares"
	"github.com/markdave123-py/Careerlyst/internal/models"
	"github.com/markdave123-py/Careerlyst/internal/services"
)

type ResearchHandler struct {
	research *services.ResearchService
	log      logrus.FieldLogger
}

func NewResearchHandler(research *services.ResearchService, log logrus.FieldLogger) *ResearchHandler {
	return &ResearchHandler{research: research, log: log}
}

type generateRequest struct {
	ResearchType string `json:"researchType"`
}

// GetResearch returns every stored record for the company. Clients poll this endpoint.
func (h *ResearchHandler) GetResearch(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyId")
	st, err := h.research.Status(r.Context(), companyID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Generate queues research generation and returns 202. An empty body generates every
// vector; {"researchType": "..."} generates one. The caller always polls for the result.
func (h *ResearchHandler) Generate(w http.ResponseWriter, r *http.Request) {
	companyID := chi.URLParam(r, "companyId")

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeBadRequest(w, "could not read body")
		return
	}

	var req generateRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeBadRequest(w, "invalid body")
			return
		}
	}

	var accepted *models.GenerationAccepted
	if req.ResearchType == "" {
		accepted, err = h.research.TriggerAll(r.Context(), companyID)
	} else {
		accepted, err = h.research.TriggerOne(r.Context(), companyID, req.ResearchType)
	}
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	fields := logrus.Fields{
		"company_id":    companyID,
		"research_type": req.ResearchType,
	}
	if uid, ok := appMiddleware.UserID(r.Context()); ok {
		fields["user_id"] = uid
	}
	h.log.WithFields(fields).Info("research generation queued")
	writeJSON(w, http.StatusAccepted, accepted)
}

func (h *ResearchHandler) InvalidateAll(w http.ResponseWriter, r *http.Request) {
	if _, err := h.research.InvalidateAll(r.Context(), chi.URLParam(r, "companyId")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ResearchHandler) InvalidateOne(w http.ResponseWriter, r *http.Request) {
	err := h.research.Invalidate(r.Context(), chi.URLParam(r, "companyId"), chi.URLParam(r, "researchType"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
