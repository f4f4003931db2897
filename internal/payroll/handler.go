package payroll

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-erp/atlas-payroll/internal/authz"
	"github.com/atlas-erp/atlas-payroll/internal/platform/httpx"
	"github.com/atlas-erp/atlas-payroll/internal/shared"
)

type periodService interface {
	CreatePeriod(ctx context.Context, in CreatePeriodInput) (Period, error)
	GetPeriod(ctx context.Context, periodID int64) (Period, error)
	ListPeriods(ctx context.Context, tenantID int64, page, perPage int) ([]Period, shared.Pagination, error)
	ListEntries(ctx context.Context, periodID int64) ([]Entry, error)
	Transition(ctx context.Context, in TransitionInput) (Period, error)
	UpsertEntry(ctx context.Context, in UpsertEntryInput) (Entry, error)
	RemoveEntry(ctx context.Context, periodID, employeeID, actorID int64) error
	Recalculate(ctx context.Context, periodID, actorID int64) (Period, error)
	RetirePeriod(ctx context.Context, periodID, actorID int64) error
}

// RecalcEnqueuer schedules a background recalculation instead of running it
// on the request path. Satisfied by *jobs.Enqueuer.
type RecalcEnqueuer interface {
	EnqueueRecalculate(ctx context.Context, periodID, actorID int64) error
}

// Handler wires the JSON API for payroll periods.
type Handler struct {
	logger   *slog.Logger
	service  periodService
	validate *validator.Validate
	enqueuer RecalcEnqueuer
	authz    authz.Middleware
}

// NewHandler constructs a payroll HTTP handler. enqueuer may be nil; async
// recalculation is then unavailable.
func NewHandler(logger *slog.Logger, service periodService, enqueuer RecalcEnqueuer, authzMW authz.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		enqueuer: enqueuer,
		authz:    authzMW,
	}
}

// MountRoutes registers HTTP routes. Transition-class endpoints reject actors
// holding none of the payroll capabilities up front; the service performs the
// exact per-edge check.
func (h *Handler) MountRoutes(r chi.Router) {
	anyCapability := h.authz.Require(
		authz.CapabilityLock, authz.CapabilityUnlock, authz.CapabilityApprove, authz.CapabilityPay,
	)
	r.Route("/payroll/periods", func(r chi.Router) {
		r.Get("/", h.listPeriods)
		r.Post("/", h.createPeriod)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getPeriod)
			r.Get("/entries", h.listEntries)
			r.Put("/entries/{employeeID}", h.upsertEntry)
			r.Delete("/entries/{employeeID}", h.removeEntry)
			r.Group(func(r chi.Router) {
				r.Use(anyCapability)
				r.Delete("/", h.retirePeriod)
				r.Post("/transition", h.transition)
				r.Post("/recalculate", h.recalculate)
			})
		})
	})
}

func (h *Handler) createPeriod(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	var req createPeriodRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	period, err := h.service.CreatePeriod(r.Context(), CreatePeriodInput{
		TenantID: req.TenantID,
		Month:    req.Month,
		Year:     req.Year,
		ActorID:  actorID,
		Notes:    req.Notes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPeriodResponse(period))
}

func (h *Handler) getPeriod(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.periodID(w, r)
	if !ok {
		return
	}
	period, err := h.service.GetPeriod(r.Context(), periodID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) listPeriods(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(r.URL.Query().Get("tenant_id"), 10, 64)
	if err != nil || tenantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "tenant_id query parameter required")
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	periods, pagination, err := h.service.ListPeriods(r.Context(), tenantID, page, perPage)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := periodListResponse{
		Periods:    make([]periodResponse, 0, len(periods)),
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		Total:      pagination.Total,
		TotalPages: pagination.TotalPages,
	}
	for _, p := range periods {
		resp.Periods = append(resp.Periods, toPeriodResponse(p))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	periodID, ok := h.periodID(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	period, err := h.service.Transition(r.Context(), TransitionInput{
		PeriodID: periodID,
		Target:   PeriodStatus(req.Target),
		ActorID:  actorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) recalculate(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	periodID, ok := h.periodID(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("async") == "1" {
		if h.enqueuer == nil {
			httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "background recalculation is not configured")
			return
		}
		if err := h.enqueuer.EnqueueRecalculate(r.Context(), periodID, actorID); err != nil {
			h.logger.Error("enqueue recalculate", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}
	period, err := h.service.Recalculate(r.Context(), periodID, actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toPeriodResponse(period))
}

func (h *Handler) retirePeriod(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	periodID, ok := h.periodID(w, r)
	if !ok {
		return
	}
	if err := h.service.RetirePeriod(r.Context(), periodID, actorID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.periodID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.ListEntries(r.Context(), periodID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toEntryResponse(e))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) upsertEntry(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	periodID, ok := h.periodID(w, r)
	if !ok {
		return
	}
	employeeID, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil || employeeID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid employee id")
		return
	}
	var req upsertEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry, err := h.service.UpsertEntry(r.Context(), UpsertEntryInput{
		PeriodID:   periodID,
		EmployeeID: employeeID,
		ActorID:    actorID,
		Fields:     req.fields(),
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) removeEntry(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "actor required")
		return
	}
	periodID, ok := h.periodID(w, r)
	if !ok {
		return
	}
	employeeID, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil || employeeID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid employee id")
		return
	}
	if err := h.service.RemoveEntry(r.Context(), periodID, employeeID, actorID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) periodID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid period id")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPeriodNotFound), errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrEmployeeNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicatePeriod):
		httpx.Problem(w, http.StatusConflict, "Duplicate Period", err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrPeriodNotEditable):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrPermissionDenied):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrAggregation):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Aggregation Failed", err.Error())
	default:
		h.logger.Error("payroll handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
