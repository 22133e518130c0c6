package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/vitalplan/internal/apperr"
	"github.com/starford/vitalplan/internal/checksum"
	"github.com/starford/vitalplan/internal/models"
	"github.com/starford/vitalplan/internal/planservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *planservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *planservice.Service) *Handler {
	return &Handler{svc: svc}
}

// planParams extracts the {domain} and {ownerID} route parameters.
func planParams(r *http.Request) (int64, models.Domain, error) {
	domain, err := models.ParseDomain(chi.URLParam(r, "domain"))
	if err != nil {
		return 0, "", apperr.Invalid("%v", err)
	}
	owner, err := strconv.ParseInt(chi.URLParam(r, "ownerID"), 10, 64)
	if err != nil || owner <= 0 {
		return 0, "", apperr.Invalid("owner id must be a positive integer")
	}
	return owner, domain, nil
}

// GeneratePlan handles POST /api/plans/{domain}/{ownerID}.
//
//	@Summary		Generate and store a weekly plan
//	@Tags			plans
//	@Accept			json
//	@Produce		json
//	@Param			domain	path		string				true	"Plan domain"	Enums(nutrition, exercise)
//	@Param			ownerID	path		int					true	"Owner id"
//	@Param			body	body		GeneratePlanRequest	false	"Preferences"
//	@Success		201		{object}	PlanView
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	generationErrResponse
//	@Failure		503		{object}	generationErrResponse
//	@Security		BearerAuth
//	@Router			/plans/{domain}/{ownerID} [post]
func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	owner, domain, err := planParams(r)
	if err != nil {
		writeError(w, "generate plan", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	var req GeneratePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	view, err := h.svc.GeneratePlan(r.Context(), owner, domain, req.Preferences)
	if err != nil {
		writeError(w, "generate plan", err)
		return
	}
	if view.Revision != "" {
		w.Header().Set("ETag", checksum.ETag(view.Revision))
	}
	writeJSON(w, http.StatusCreated, view)
}

// GetPlan handles GET /api/plans/{domain}/{ownerID}.
//
//	@Summary		Get the stored weekly plan
//	@Tags			plans
//	@Produce		json
//	@Param			domain			path		string	true	"Plan domain"
//	@Param			ownerID			path		int		true	"Owner id"
//	@Param			If-None-Match	header		string	false	"Revision from a previous response"
//	@Success		200				{object}	PlanView
//	@Success		304				"Not modified"
//	@Failure		404				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plans/{domain}/{ownerID} [get]
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	owner, domain, err := planParams(r)
	if err != nil {
		writeError(w, "get plan", err)
		return
	}
	view, err := h.svc.GetPlan(r.Context(), owner, domain)
	if err != nil {
		writeError(w, "get plan", err)
		return
	}
	etag := checksum.ETag(view.Revision)
	w.Header().Set("ETag", etag)
	if checksum.Match(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeletePlan handles DELETE /api/plans/{domain}/{ownerID}.
//
//	@Summary		Delete the stored weekly plan
//	@Tags			plans
//	@Produce		json
//	@Param			domain	path		string	true	"Plan domain"
//	@Param			ownerID	path		int		true	"Owner id"
//	@Success		200		{object}	DeletePlanResponse
//	@Security		BearerAuth
//	@Router			/plans/{domain}/{ownerID} [delete]
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	owner, domain, err := planParams(r)
	if err != nil {
		writeError(w, "delete plan", err)
		return
	}
	n, err := h.svc.DeletePlan(r.Context(), owner, domain)
	if err != nil {
		writeError(w, "delete plan", err)
		return
	}
	writeJSON(w, http.StatusOK, DeletePlanResponse{Deleted: n})
}

// ListRejections handles GET /api/plans/{domain}/{ownerID}/rejections.
//
//	@Summary		List archived responses that failed validation
//	@Tags			plans
//	@Produce		json
//	@Success		200	{object}	RejectionsResponse
//	@Security		BearerAuth
//	@Router			/plans/{domain}/{ownerID}/rejections [get]
func (h *Handler) ListRejections(w http.ResponseWriter, r *http.Request) {
	owner, domain, err := planParams(r)
	if err != nil {
		writeError(w, "list rejections", err)
		return
	}
	items, err := h.svc.Rejections(r.Context(), owner, domain)
	if err != nil {
		writeError(w, "list rejections", err)
		return
	}
	writeJSON(w, http.StatusOK, RejectionsResponse{Rejections: items})
}

// GetRejection handles GET /api/plans/{domain}/{ownerID}/rejections/{name}
// and returns the raw archived response.
func (h *Handler) GetRejection(w http.ResponseWriter, r *http.Request) {
	owner, domain, err := planParams(r)
	if err != nil {
		writeError(w, "get rejection", err)
		return
	}
	rel := path.Join(models.ArchiveDir(domain, owner), path.Base(chi.URLParam(r, "name")))
	raw, err := h.svc.RejectedResponse(r.Context(), owner, domain, rel)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// GetContract handles GET /api/contracts/{domain}.
//
//	@Summary		Describe the document shape requested for a domain
//	@Tags			contracts
//	@Produce		json
//	@Param			domain	path		string	true	"Plan domain"
//	@Success		200		{object}	ContractView
//	@Failure		400		{object}	errResponse
//	@Router			/contracts/{domain} [get]
func (h *Handler) GetContract(w http.ResponseWriter, r *http.Request) {
	domain, err := models.ParseDomain(chi.URLParam(r, "domain"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	c, err := h.svc.Contract(domain)
	if err != nil {
		writeError(w, "get contract", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
