package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/markdave123-py/Careerlyst/internal/models"
	"github.com/markdave123-py/Careerlyst/internal/services"
)

type CompanyHandler struct {
	companies *services.CompanyService
	log       logrus.FieldLogger
}

func NewCompanyHandler(companies *services.CompanyService, log logrus.FieldLogger) *CompanyHandler {
	return &CompanyHandler{companies: companies, log: log}
}

type companyRequest struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

func (h *CompanyHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	co, err := h.companies.Get(r.Context(), chi.URLParam(r, "companyId"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, co)
}

func (h *CompanyHandler) PutCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeBadRequest(w, "invalid body")
		return
	}

	co, err := h.companies.Upsert(r.Context(), &models.Company{
		ID:     chi.URLParam(r, "companyId"),
		Name:   req.Name,
		Domain: req.Domain,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, co)
}
