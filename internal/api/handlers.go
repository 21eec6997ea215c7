package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/catalogservice"
	"github.com/starford/ansuz/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *catalogservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *catalogservice.Service) *Handler {
	return &Handler{svc: svc}
}

func objectID(r *http.Request) string {
	return chi.URLParam(r, "objectId")
}

func (h *Handler) writeObject(w http.ResponseWriter, status int, obj *models.ObjectDef) {
	setETag(w, obj.Revision)
	writeJSON(w, status, ObjectResponse{Object: obj})
}

// GetObject handles GET /api/objects/{objectId}.
//
//	@Summary		Get an object definition with its members and relationships
//	@Tags			objects
//	@Produce		json
//	@Param			objectId	path		string	true	"Object id"
//	@Success		200			{object}	ObjectResponse
//	@Failure		404			{object}	errResponse
//	@Router			/objects/{objectId} [get]
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	id := objectID(r)
	obj, err := h.svc.GetObject(r.Context(), id)
	if err != nil {
		writeError(w, err, "get object", slog.String("object_id", id))
		return
	}
	h.writeObject(w, http.StatusOK, obj)
}

// CreateObject handles POST /api/objects.
//
//	@Summary		Create an object definition owned by the caller
//	@Tags			objects
//	@Accept			json
//	@Produce		json
//	@Param			X-User-Id	header		string				true	"Caller id"
//	@Param			body		body		CreateObjectRequest	true	"Object to create"
//	@Success		201			{object}	ObjectResponse
//	@Failure		400			{object}	errResponse
//	@Failure		403			{object}	errResponse
//	@Router			/objects [post]
func (h *Handler) CreateObject(w http.ResponseWriter, r *http.Request) {
	var req CreateObjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	obj, err := h.svc.CreateObject(r.Context(), CallerID(r.Context()), req)
	if err != nil {
		writeError(w, err, "create object", slog.String("name", req.Name))
		return
	}
	h.writeObject(w, http.StatusCreated, obj)
}

// PatchObject handles PATCH /api/objects/{objectId}.
//
//	@Summary		Rename or re-describe an object definition
//	@Tags			objects
//	@Accept			json
//	@Produce		json
//	@Param			objectId	path		string				true	"Object id"
//	@Param			If-Match	header		string				false	"Expected revision"
//	@Param			body		body		PatchObjectRequest	true	"Fields to change"
//	@Success		200			{object}	ObjectResponse
//	@Failure		400			{object}	errResponse
//	@Failure		403			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Router			/objects/{objectId} [patch]
func (h *Handler) PatchObject(w http.ResponseWriter, r *http.Request) {
	id := objectID(r)
	rev, err := ifMatchRevision(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var req PatchObjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	obj, err := h.svc.PatchObject(r.Context(), CallerID(r.Context()), id, req, rev)
	if err != nil {
		writeError(w, err, "patch object", slog.String("object_id", id))
		return
	}
	h.writeObject(w, http.StatusOK, obj)
}

// UpdateAttributes handles PUT /api/objects/{objectId}/attributes.
//
// The submitted list replaces the attribute set: entries with an id update
// that attribute, entries without one are created, and persisted attributes
// left out are deleted, all in one transaction.
//
//	@Summary		Replace the attribute set of an object
//	@Tags			objects
//	@Accept			json
//	@Produce		json
//	@Param			objectId	path		string					true	"Object id"
//	@Param			X-User-Id	header		string					true	"Caller id"
//	@Param			If-Match	header		string					false	"Expected revision"
//	@Param			body		body		UpdateAttributesRequest	true	"Complete attribute list"
//	@Success		200			{object}	ObjectResponse
//	@Failure		400			{object}	errResponse
//	@Failure		403			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		500			{object}	errResponse
//	@Router			/objects/{objectId}/attributes [put]
func (h *Handler) UpdateAttributes(w http.ResponseWriter, r *http.Request) {
	id := objectID(r)
	rev, err := ifMatchRevision(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var req UpdateAttributesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Attributes == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("attributes list is required"))
		return
	}
	obj, err := h.svc.UpdateAttributes(r.Context(), CallerID(r.Context()), id, req.Attributes, rev)
	if err != nil {
		writeError(w, err, "update attributes", slog.String("object_id", id))
		return
	}
	h.writeObject(w, http.StatusOK, obj)
}

// UpdateMethods handles PUT /api/objects/{objectId}/methods.
//
// Same contract as UpdateAttributes. Parameters of every kept method are
// replaced by the submitted parameter list.
//
//	@Summary		Replace the method set of an object
//	@Tags			objects
//	@Accept			json
//	@Produce		json
//	@Param			objectId	path		string					true	"Object id"
//	@Param			X-User-Id	header		string					true	"Caller id"
//	@Param			If-Match	header		string					false	"Expected revision"
//	@Param			body		body		UpdateMethodsRequest	true	"Complete method list"
//	@Success		200			{object}	ObjectResponse
//	@Failure		400			{object}	errResponse
//	@Failure		403			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		500			{object}	errResponse
//	@Router			/objects/{objectId}/methods [put]
func (h *Handler) UpdateMethods(w http.ResponseWriter, r *http.Request) {
	id := objectID(r)
	rev, err := ifMatchRevision(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	var req UpdateMethodsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Methods == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("methods list is required"))
		return
	}
	obj, err := h.svc.UpdateMethods(r.Context(), CallerID(r.Context()), id, req.Methods, rev)
	if err != nil {
		writeError(w, err, "update methods", slog.String("object_id", id))
		return
	}
	h.writeObject(w, http.StatusOK, obj)
}

// ObjectVersions handles GET /api/objects/name/{name}.
//
//	@Summary		List every version of an object name with its creator
//	@Tags			objects
//	@Produce		json
//	@Param			name	path		string	true	"Object name, case-insensitive"
//	@Success		200		{object}	VersionsResponse
//	@Failure		404		{object}	errResponse
//	@Router			/objects/name/{name} [get]
func (h *Handler) ObjectVersions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	versions, err := h.svc.VersionsByName(r.Context(), name)
	if err != nil {
		writeError(w, err, "object versions", slog.String("name", name))
		return
	}
	writeJSON(w, http.StatusOK, VersionsResponse{Objects: versions})
}

// History handles GET /api/objects/{objectId}/history.
//
//	@Summary		List rename and description changes of an object
//	@Tags			objects
//	@Produce		json
//	@Param			objectId	path		string	true	"Object id"
//	@Success		200			{object}	HistoryResponse
//	@Failure		404			{object}	errResponse
//	@Router			/objects/{objectId}/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	id := objectID(r)
	hist, err := h.svc.History(r.Context(), id)
	if err != nil {
		writeError(w, err, "history", slog.String("object_id", id))
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{History: hist})
}

// CreateRelationship handles POST /api/objects/{objectId}/relationships.
//
//	@Summary		Link an object to another object
//	@Tags			objects
//	@Accept			json
//	@Produce		json
//	@Param			objectId	path		string						true	"Source object id"
//	@Param			X-User-Id	header		string						true	"Caller id"
//	@Param			body		body		CreateRelationshipRequest	true	"Relationship"
//	@Success		201			{object}	ObjectResponse
//	@Failure		400			{object}	errResponse
//	@Failure		403			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Router			/objects/{objectId}/relationships [post]
func (h *Handler) CreateRelationship(w http.ResponseWriter, r *http.Request) {
	id := objectID(r)
	var req CreateRelationshipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	obj, err := h.svc.CreateRelationship(r.Context(), CallerID(r.Context()), id, req)
	if err != nil {
		writeError(w, err, "create relationship", slog.String("object_id", id))
		return
	}
	h.writeObject(w, http.StatusCreated, obj)
}

// ListInstances handles GET /api/objects/{objectId}/instances.
//
//	@Summary		List the instances of an object
//	@Tags			instances
//	@Produce		json
//	@Param			objectId	path		string	true	"Object id"
//	@Success		200			{object}	InstanceListResponse
//	@Failure		404			{object}	errResponse
//	@Router			/objects/{objectId}/instances [get]
func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request) {
	id := objectID(r)
	list, err := h.svc.ListInstances(r.Context(), id)
	if err != nil {
		writeError(w, err, "list instances", slog.String("object_id", id))
		return
	}
	writeJSON(w, http.StatusOK, InstanceListResponse{Instances: list})
}

// CreateInstance handles POST /api/objects/{objectId}/instances.
//
//	@Summary		Create an instance of an object
//	@Tags			instances
//	@Accept			json
//	@Produce		json
//	@Param			objectId	path		string					true	"Object id"
//	@Param			X-User-Id	header		string					true	"Caller id"
//	@Param			body		body		CreateInstanceRequest	true	"Instance values"
//	@Success		201			{object}	InstanceResponse
//	@Failure		400			{object}	errResponse
//	@Failure		403			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Router			/objects/{objectId}/instances [post]
func (h *Handler) CreateInstance(w http.ResponseWriter, r *http.Request) {
	id := objectID(r)
	var req CreateInstanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	inst, err := h.svc.CreateInstance(r.Context(), CallerID(r.Context()), id, req)
	if err != nil {
		writeError(w, err, "create instance", slog.String("object_id", id))
		return
	}
	writeJSON(w, http.StatusCreated, InstanceResponse{Instance: inst})
}

// Search handles GET /api/search.
//
//	@Summary		Fuzzy search over object names
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, err, "search", slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Objects: hits})
}

// Designs handles GET /api/designs.
//
//	@Summary		List or count the objects created by a user
//	@Tags			objects
//	@Produce		json
//	@Param			userId	query		string	false	"Creator id (defaults to the caller)"
//	@Param			count	query		bool	false	"Return only the count"
//	@Success		200		{object}	DesignsResponse
//	@Failure		400		{object}	errResponse
//	@Router			/designs [get]
func (h *Handler) Designs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("userId")
	if userID == "" {
		userID = CallerID(r.Context())
	}
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'userId' is required"))
		return
	}
	if q.Get("count") == "true" {
		n, err := h.svc.CountDesigns(r.Context(), userID)
		if err != nil {
			writeError(w, err, "count designs", slog.String("user_id", userID))
			return
		}
		writeJSON(w, http.StatusOK, CountResponse{Count: n})
		return
	}
	list, err := h.svc.ListDesigns(r.Context(), userID)
	if err != nil {
		writeError(w, err, "list designs", slog.String("user_id", userID))
		return
	}
	writeJSON(w, http.StatusOK, DesignsResponse{Objects: list})
}

// Browse handles GET /api/browse.
//
//	@Summary		Latest instances across the catalog
//	@Tags			instances
//	@Produce		json
//	@Success		200	{object}	BrowseResponse
//	@Router			/browse [get]
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Browse(r.Context())
	if err != nil {
		writeError(w, err, "browse")
		return
	}
	writeJSON(w, http.StatusOK, BrowseResponse{Instances: items})
}
