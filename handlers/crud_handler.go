package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/middleware"
	"github.com/koroglumert/oneuptimelocal-sub000/repositories"
	"github.com/koroglumert/oneuptimelocal-sub000/services/accesscontrol"
	"github.com/koroglumert/oneuptimelocal-sub000/services/datastore"
	"github.com/koroglumert/oneuptimelocal-sub000/utils"
)

const defaultListLimit = 10

// sortRequest is the client-facing sort clause.
type sortRequest struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending"`
}

// listRequest is the body of POST /{table}/get-list.
type listRequest struct {
	Query  accesscontrol.RawQuery  `json:"query"`
	Select accesscontrol.RawSelect `json:"select"`
	Sort   *sortRequest            `json:"sort"`
	Skip   int                     `json:"skip" validate:"gte=0"`
	Limit  int                     `json:"limit" validate:"gte=0,lte=1000"`
}

// mutationRequest is the body of create and update calls.
type mutationRequest struct {
	Data map[string]interface{} `json:"data"`
}

// CRUDHandler serves the generic per-descriptor endpoints. The table path
// segment selects the descriptor; the engine decides everything else.
type CRUDHandler struct {
	service  *datastore.Service
	registry *accesscontrol.Registry
	logger   *zap.Logger
}

// NewCRUDHandler creates a new CRUDHandler
func NewCRUDHandler(service *datastore.Service, registry *accesscontrol.Registry, logger *zap.Logger) *CRUDHandler {
	return &CRUDHandler{
		service:  service,
		registry: registry,
		logger:   logger,
	}
}

// table resolves the {table} path parameter against the registry.
func (h *CRUDHandler) table(w http.ResponseWriter, r *http.Request) (string, bool) {
	table := chi.URLParam(r, "table")
	if err := utils.ValidateTableName(table); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return "", false
	}
	if _, ok := h.registry.Get(table); !ok {
		_ = utils.WriteNotFound(w, "unknown resource: "+table)
		return "", false
	}
	return table, true
}

// HandleList handles POST /{table}/get-list
func (h *CRUDHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(w, r)
	if !ok {
		return
	}
	caller := middleware.GetCallerFromContext(r.Context())

	var req listRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			_ = utils.WriteBadRequest(w, "invalid request body", nil)
			return
		}
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultListLimit
	}

	opts := repositories.FindOptions{
		Skip:  req.Skip,
		Limit: req.Limit,
		// Newest rows first unless the client asked otherwise.
		Sort: []repositories.Sort{{Column: "created_at", Descending: true}},
	}
	if req.Sort != nil && req.Sort.Column != "" {
		opts.Sort = []repositories.Sort{{Column: req.Sort.Column, Descending: req.Sort.Descending}}
	}

	rows, err := h.service.Find(r.Context(), table, req.Query, req.Select, opts, caller)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	count, err := h.service.Count(r.Context(), table, req.Query, caller)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteList(w, rows, count, req.Skip, req.Limit)
}

// HandleCreate handles POST /{table}
func (h *CRUDHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(w, r)
	if !ok {
		return
	}
	caller := middleware.GetCallerFromContext(r.Context())

	var req mutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "invalid request body", nil)
		return
	}
	if len(req.Data) == 0 {
		_ = utils.WriteBadRequest(w, "data is required", nil)
		return
	}

	row, err := h.service.Create(r.Context(), table, req.Data, caller)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteCreated(w, row)
}

// HandleGet handles POST /{table}/get-item/{id}
func (h *CRUDHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := utils.ValidateUUID(id); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	caller := middleware.GetCallerFromContext(r.Context())

	var req listRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			_ = utils.WriteBadRequest(w, "invalid request body", nil)
			return
		}
	}
	query := accesscontrol.RawQuery{"id": id}

	row, err := h.service.FindOne(r.Context(), table, query, req.Select, caller)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, row)
}

// HandleUpdate handles PUT /{table}/{id}
func (h *CRUDHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := utils.ValidateUUID(id); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	caller := middleware.GetCallerFromContext(r.Context())

	var req mutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "invalid request body", nil)
		return
	}
	if len(req.Data) == 0 {
		_ = utils.WriteBadRequest(w, "data is required", nil)
		return
	}

	updated, err := h.service.Update(r.Context(), table, accesscontrol.RawQuery{"id": id}, req.Data, caller)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if updated == 0 {
		_ = utils.WriteNotFound(w, "")
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{"updated": updated})
}

// HandleDelete handles DELETE /{table}/{id}
func (h *CRUDHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	table, ok := h.table(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := utils.ValidateUUID(id); err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	caller := middleware.GetCallerFromContext(r.Context())

	deleted, err := h.service.Delete(r.Context(), table, accesscontrol.RawQuery{"id": id}, caller)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if deleted == 0 {
		_ = utils.WriteNotFound(w, "")
		return
	}

	utils.WriteNoContent(w)
}
