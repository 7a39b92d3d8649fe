package marketplace

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Oniqq60/task_marketplace/internal/dto"
	"github.com/Oniqq60/task_marketplace/internal/lifecycle"
	"github.com/Oniqq60/task_marketplace/internal/principal"
	"github.com/google/uuid"
)

// PrincipalResolver identifies the caller of a request.
type PrincipalResolver interface {
	FromRequest(r *http.Request) (principal.Principal, error)
}

type Handler struct {
	service  MarketplaceService
	resolver PrincipalResolver
	logger   *slog.Logger
}

func NewHandler(service MarketplaceService, resolver PrincipalResolver, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		resolver: resolver,
		logger:   logger,
	}
}

func (h *Handler) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /tasks", h.ListTasks)
	mux.HandleFunc("POST /tasks", h.CreateTask)
	mux.HandleFunc("GET /tasks/{id}", h.GetTask)
	mux.HandleFunc("PATCH /tasks/{id}/status", h.ChangeStatus)
	mux.HandleFunc("POST /tasks/{id}/bids", h.SubmitBid)
	mux.HandleFunc("PATCH /tasks/{id}/bids/{bidId}", h.DecideBid)
	mux.HandleFunc("GET /dashboard/tasks", h.Dashboard)
	mux.HandleFunc("GET /categories", h.Categories)
	mux.HandleFunc("GET /healthz", h.Health)
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.service.ListOpenTasks(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskSummaries(tasks))
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req dto.CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	task, err := h.service.CreateTask(r.Context(), p, TaskInput{
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		Category:    req.Category,
		Location:    req.Location,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id", "task")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	task, err := h.service.GetTask(r.Context(), taskID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	taskID, err := pathID(r, "id", "task")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var req dto.ChangeStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	task, err := h.service.ChangeStatus(r.Context(), p, taskID, req.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *Handler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	taskID, err := pathID(r, "id", "task")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var req dto.SubmitBidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	task, err := h.service.SubmitBid(r.Context(), p, taskID, BidInput{Amount: req.Amount, Message: req.Message})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTaskResponse(task))
}

func (h *Handler) DecideBid(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	taskID, err := pathID(r, "id", "task")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	bidID, err := pathID(r, "bidId", "bid")
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	var req dto.DecideBidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	task, err := h.service.DecideBid(r.Context(), p, taskID, bidID, req.Action)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.Dashboard(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponses(tasks))
}

func (h *Handler) Categories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dto.CategoriesResponse{Categories: h.service.Categories()})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (principal.Principal, bool) {
	p, err := h.resolver.FromRequest(r)
	if err == nil {
		return p, true
	}
	if errors.Is(err, principal.ErrUnauthenticated) {
		writeError(w, http.StatusUnauthorized, "sign in required")
	} else {
		h.logger.Error("resolve principal", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
	return principal.Principal{}, false
}

// pathID parses a path parameter. An id that is not a UUID cannot name a
// stored row, so it reads as not found.
func pathID(r *http.Request, name, entity string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s", lifecycle.ErrNotFound, entity)
	}
	return id, nil
}
