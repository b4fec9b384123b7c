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

// ExamHandler handles exam-related endpoints.
type ExamHandler struct {
	examService service.ExamService
	subSvc      service.SubscriptionService
	validate    *validator.Validate
	logger      zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(examService service.ExamService, subSvc service.SubscriptionService, validate *validator.Validate, logger zerolog.Logger) *ExamHandler {
	return &ExamHandler{examService: examService, subSvc: subSvc, validate: validate, logger: logger}
}

// RegisterRoutes mounts exam routes under /exams and /exams/{id}
func (h *ExamHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/exams", authMiddleware(http.HandlerFunc(h.handleExams)))
	mux.Handle("/exams/", authMiddleware(http.HandlerFunc(h.handleExam)))
}

func (h *ExamHandler) handleExams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createExam(w, r)
	case http.MethodGet:
		h.listExams(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ExamHandler) handleExam(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if !strings.HasPrefix(path, "/exams/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.getExam(w, r)
	case http.MethodPost:
		if strings.HasSuffix(path, "/answers") {
			h.submitAnswers(w, r)
			return
		}
		http.NotFound(w, r)
	default:
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// createExam godoc
// @Summary Request a generated practice exam
// @Description Creates a pending exam and enqueues question generation. Free-tier users are limited to one exam generation per week.
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body dto.ExamCreateDTO true "Exam generation request"
// @Success 202 {object} dto.ExamResponseDTO
// @Failure 400 {string} string "Invalid JSON payload"
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 429 {object} service.Admission "Weekly generation limit reached"
// @Failure 500 {string} string "Failed to create exam"
// @Router /exams [post]
func (h *ExamHandler) createExam(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	var req dto.ExamCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	exam, err := h.examService.SubmitExam(r.Context(), userID, service.ExamSpec{
		Subject:       req.Subject,
		Bank:          req.Bank,
		QuestionCount: req.QuestionCount,
	})
	if err != nil {
		if errors.Is(err, repository.ErrWeeklyLimitReached) {
			writeQuotaDenied(r.Context(), w, h.subSvc, userID, model.ResourceTypeExam)
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to create exam")
		http.Error(w, "Failed to create exam: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(toExamResponse(exam))
}

// listExams godoc
// @Summary List the user's exams
// @Description Returns the authenticated user's exams, most recent first.
// @Tags exams
// @Produce json
// @Param limit query int false "Page size (default 20)"
// @Param offset query int false "Page offset"
// @Success 200 {array} dto.ExamResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 500 {string} string "Failed to list exams"
// @Router /exams [get]
func (h *ExamHandler) listExams(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	limit, offset := pagination(r)
	exams, err := h.examService.ListExams(r.Context(), userID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to list exams: "+err.Error(), http.StatusInternalServerError)
		return
	}
	resp := make([]dto.ExamResponseDTO, 0, len(exams))
	for i := range exams {
		resp = append(resp, toExamResponse(&exams[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// getExam godoc
// @Summary Get an exam
// @Description Retrieves an exam with its questions. Correct options are only revealed once the exam is answered.
// @Tags exams
// @Produce json
// @Param examId path string true "Exam ID"
// @Success 200 {object} dto.ExamResponseDTO
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 404 {string} string "Exam not found"
// @Failure 500 {string} string "Failed to retrieve exam"
// @Router /exams/{examId} [get]
func (h *ExamHandler) getExam(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	examID := strings.TrimPrefix(r.URL.Path, "/exams/")
	exam, err := h.examService.GetExam(r.Context(), examID, userID)
	if err != nil {
		if errors.Is(err, service.ErrNotOwner) {
			http.Error(w, "Exam not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve exam: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if exam == nil {
		http.Error(w, "Exam not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toExamResponse(exam))
}

// submitAnswers godoc
// @Summary Submit answers for an exam
// @Description Grades the chosen options and moves the exam to answered.
// @Tags exams
// @Accept json
// @Produce json
// @Param examId path string true "Exam ID"
// @Param answers body dto.ExamAnswersDTO true "Chosen option per question"
// @Success 200 {object} dto.ExamResponseDTO
// @Failure 400 {string} string "Invalid JSON payload"
// @Failure 401 {string} string "Unauthorized: User ID not found in context"
// @Failure 404 {string} string "Exam not found"
// @Failure 409 {string} string "Exam is not awaiting responses"
// @Failure 500 {string} string "Failed to submit answers"
// @Router /exams/{examId}/answers [post]
func (h *ExamHandler) submitAnswers(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}
	examID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/exams/"), "/answers")
	var req dto.ExamAnswersDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	exam, err := h.examService.SubmitAnswers(r.Context(), examID, userID, req.Answers, req.ElapsedSec)
	if err != nil {
		if errors.Is(err, service.ErrNotOwner) || errors.Is(err, service.ErrNotFound) {
			http.Error(w, "Exam not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, service.ErrNotAwaitingResponses) {
			http.Error(w, "Exam is not awaiting responses", http.StatusConflict)
			return
		}
		h.logger.Error().Err(err).Str("exam_id", examID).Msg("Failed to submit answers")
		http.Error(w, "Failed to submit answers: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toExamResponse(exam))
}

func toExamResponse(exam *model.Exam) dto.ExamResponseDTO {
	resp := dto.ExamResponseDTO{
		ExamID:        exam.ID,
		UserID:        exam.UserID,
		Title:         exam.Title,
		Subject:       exam.Subject,
		Bank:          exam.Bank,
		QuestionCount: exam.QuestionCount,
		Status:        exam.Status,
		Score:         exam.Score,
		ElapsedSec:    exam.ElapsedSec,
		CreatedAt:     exam.CreatedAt,
		UpdatedAt:     exam.UpdatedAt,
	}
	revealAnswers := exam.Status == model.ExamStatusAnswered
	for _, q := range exam.Questions {
		qResp := dto.QuestionResponseDTO{
			QuestionID: q.ID,
			Statement:  q.Statement,
			Position:   q.Position,
		}
		for _, opt := range q.Options {
			optResp := dto.OptionResponseDTO{
				OptionID: opt.ID,
				Text:     opt.Text,
				Position: opt.Position,
			}
			if revealAnswers {
				correct := opt.Correct
				optResp.Correct = &correct
			}
			qResp.Options = append(qResp.Options, optResp)
		}
		resp.Questions = append(resp.Questions, qResp)
	}
	return resp
}
