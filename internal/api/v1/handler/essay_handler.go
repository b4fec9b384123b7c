package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/justAlves/estudeai-sub000/internal/api/v1/dto"
	"github.com/justAlves/estudeai-sub000/internal/middleware"
	"github.com/justAlves/estudeai-sub000/internal/model"
	"github.com/justAlves/estudeai-sub000/internal/repository"
	"github.com/justAlves/estudeai-sub000/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// EssayHandler handles essay-related endpoints.
type EssayHandler struct {
	essayService service.EssayService
	subSvc       service.SubscriptionService
	validate     *validator.Validate
	logger       zerolog.Logger
}

// NewEssayHandler creates a new EssayHandler.
func NewEssayHandler(essayService service.EssayService, subSvc service.SubscriptionService, validate *validator.Validate, logger zerolog.Logger) *EssayHandler {
	return &EssayHandler{essayService: essayService, subSvc: subSvc, validate: validate, logger: logger}
}

// RegisterRoutes mounts essay routes under /essays and /essays/{id}
func (h *EssayHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/essays", authMiddleware(http.HandlerFunc(h.handleEssays)))
	mux.Handle("/essays/", authMiddleware(http.HandlerFunc(h.handleEssay)))
}

func (h *EssayHandler) handleEssays(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createEssay(w, r)
	case http.MethodGet:
		h.listEssays(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *EssayHandler) handleEssay(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if !strings.HasPrefix(path, "/essays/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.getEssay(w, r)
	case http.MethodPost:
		if strings.HasSuffix(path, "/correct") {
			h.submitForCorrection(w, r)
			return
		}
		http.NotFound(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// createEssay godoc
// @Summary Save an essay
// @Description Saves the essay in pending status. Correction is requested separately and is the operation that consumes quota.
// @Tags essays
// @Accept json
// @Produce json
// @Param essay body dto.EssayCreateDTO true "Essay content"
// @Success 201 {object} dto.EssayResponseDTO
// @Failure 400 {string} string "Invalid JSON payload"
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 500 {string} string "Failed to create essay"
// @Router /essays [post]
func (h *EssayHandler) createEssay(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.EssayCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	essay, err := h.essayService.CreateEssay(r.Context(), userID, req.Theme, req.Bank, req.Content)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create essay")
		http.Error(w, "Failed to create essay: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toEssayResponse(essay))
}

// listEssays godoc
// @Summary List the user's essays
// @Description Returns the authenticated user's essays, most recent first.
// @Tags essays
// @Produce json
// @Param limit query int false "Page size (default 20)"
// @Param offset query int false "Page offset"
// @Success 200 {array} dto.EssayResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 500 {string} string "Failed to list essays"
// @Router /essays [get]
func (h *EssayHandler) listEssays(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	limit, offset := pagination(r)
	essays, err := h.essayService.ListEssays(r.Context(), userID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to list essays: "+err.Error(), http.StatusInternalServerError)
		return
	}
	resp := make([]dto.EssayResponseDTO, 0, len(essays))
	for i := range essays {
		resp = append(resp, toEssayResponse(&essays[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// getEssay godoc
// @Summary Get an essay
// @Description Retrieves an essay with its correction, if corrected.
// @Tags essays
// @Produce json
// @Param essayId path string true "Essay ID"
// @Success 200 {object} dto.EssayResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 404 {string} string "Essay not found"
// @Failure 500 {string} string "Failed to retrieve essay"
// @Router /essays/{essayId} [get]
func (h *EssayHandler) getEssay(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	essayID := strings.TrimPrefix(r.URL.Path, "/essays/")
	essay, err := h.essayService.GetEssay(r.Context(), essayID, userID)
	if err != nil {
		if errors.Is(err, service.ErrNotOwner) {
			http.Error(w, "Essay not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve essay: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if essay == nil {
		http.Error(w, "Essay not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEssayResponse(essay))
}

// submitForCorrection godoc
// @Summary Request correction of an essay
// @Description Enqueues the AI correction job and moves the essay to correcting. Free-tier users are limited to one correction per week.
// @Tags essays
// @Produce json
// @Param essayId path string true "Essay ID"
// @Success 202 {object} dto.EssayResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 404 {string} string "Essay not found"
// @Failure 409 {string} string "Essay was already submitted"
// @Failure 429 {object} service.Admission "Weekly generation limit reached"
// @Failure 500 {string} string "Failed to submit essay for correction"
// @Router /essays/{essayId}/correct [post]
func (h *EssayHandler) submitForCorrection(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	essayID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/essays/"), "/correct")
	essay, err := h.essayService.SubmitForCorrection(r.Context(), essayID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrWeeklyLimitReached) {
			writeQuotaDenied(r.Context(), w, h.subSvc, userID, model.ResourceTypeEssay)
			return
		}
		if errors.Is(err, service.ErrNotOwner) || errors.Is(err, service.ErrNotFound) {
			http.Error(w, "Essay not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, service.ErrAlreadySubmitted) {
			http.Error(w, "Essay was already submitted", http.StatusConflict)
			return
		}
		h.logger.Error().Err(err).Str("essay_id", essayID).Msg("Failed to submit essay for correction")
		http.Error(w, "Failed to submit essay for correction: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(toEssayResponse(essay))
}

func toEssayResponse(essay *model.Essay) dto.EssayResponseDTO {
	resp := dto.EssayResponseDTO{
		EssayID:     essay.ID,
		UserID:      essay.UserID,
		Theme:       essay.Theme,
		Bank:        essay.Bank,
		Content:     essay.Content,
		Status:      essay.Status,
		CorrectedAt: essay.CorrectedAt,
		CreatedAt:   essay.CreatedAt,
		UpdatedAt:   essay.UpdatedAt,
	}
	if c := essay.Correction; c != nil {
		resp.Correction = &dto.CorrectionResponseDTO{
			Competency1: c.Competency1,
			Competency2: c.Competency2,
			Competency3: c.Competency3,
			Competency4: c.Competency4,
			Competency5: c.Competency5,
			Total:       c.Total,
			Feedback1:   c.Feedback1,
			Feedback2:   c.Feedback2,
			Feedback3:   c.Feedback3,
			Feedback4:   c.Feedback4,
			Feedback5:   c.Feedback5,
			Overall:     c.Overall,
		}
	}
	return resp
}
