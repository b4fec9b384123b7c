package handler

import (
	"encoding/json"
	"net/http"

	"github.com/justAlves/estudeai-sub000/internal/api/v1/dto"
	"github.com/justAlves/estudeai-sub000/internal/middleware"
	"github.com/justAlves/estudeai-sub000/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// SubscriptionHandler handles subscription-related endpoints.
type SubscriptionHandler struct {
	stripeSvc *service.StripeService
	subSvc    service.SubscriptionService
	validate  *validator.Validate
	logger    zerolog.Logger
}

// NewSubscriptionHandler creates a new SubscriptionHandler.
func NewSubscriptionHandler(stripeSvc *service.StripeService, subSvc service.SubscriptionService, validate *validator.Validate, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{stripeSvc: stripeSvc, subSvc: subSvc, validate: validate, logger: logger}
}

// RegisterRoutes registers the subscription endpoints. The Stripe webhook
// is mounted without auth: it is verified by signature instead.
func (h *SubscriptionHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.Handler) http.Handler) {
	mux.Handle("/subscriptions/status", authMiddleware(http.HandlerFunc(h.Status)))
	mux.Handle("/subscriptions/checkout", authMiddleware(http.HandlerFunc(h.Checkout)))
	mux.Handle("/subscriptions/portal", authMiddleware(http.HandlerFunc(h.Portal)))
	mux.Handle("/subscriptions/cancel", authMiddleware(http.HandlerFunc(h.Cancel)))
	mux.HandleFunc("/webhooks/stripe", h.stripeSvc.HandleWebhook)
}

// Status godoc
// @Summary Get the user's subscription status
// @Description Returns the pro entitlement, the stored subscription and the current week's usage counters.
// @Tags subscriptions
// @Produce json
// @Success 200 {object} service.SubscriptionStatus
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to fetch subscription status"
// @Router /subscriptions/status [get]
func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	status, err := h.subSvc.GetStatus(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to fetch subscription status")
		http.Error(w, "failed to fetch subscription status", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}

// Checkout godoc
// @Summary Initiate a Stripe Checkout session for plan upgrade
// @Description Creates a Stripe Checkout session for the selected plan and returns its URL.
// @Tags subscriptions
// @Accept json
// @Produce json
// @Param subscription body dto.SubscriptionCheckoutRequest true "Subscription checkout request"
// @Success 200 {object} map[string]string "URL of the Stripe Checkout session"
// @Failure 400 {string} string "invalid request payload"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to create checkout session"
// @Router /subscriptions/checkout [post]
func (h *SubscriptionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req dto.SubscriptionCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	url, err := h.stripeSvc.CreateCheckoutSession(r.Context(), userID, req.Plan)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create checkout session")
		http.Error(w, "failed to create checkout session", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"url": url}); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}

// Portal godoc
// @Summary Create a Stripe Customer Portal session
// @Description Generates a Stripe Customer Portal session URL for the authenticated user.
// @Tags subscriptions
// @Produce json
// @Success 200 {object} map[string]string "URL of the Customer Portal session"
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to create portal session"
// @Router /subscriptions/portal [get]
func (h *SubscriptionHandler) Portal(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	url, err := h.stripeSvc.CreatePortalSession(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create portal session")
		http.Error(w, "failed to create portal session", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"url": url}); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}

// Cancel godoc
// @Summary Schedule cancellation at period end
// @Description Flags the subscription to cancel at the end of the current billing period. Access continues until then.
// @Tags subscriptions
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 401 {string} string "unauthorized"
// @Failure 500 {string} string "failed to cancel subscription"
// @Router /subscriptions/cancel [post]
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := r.Context().Value(middleware.UserContextKey).(string)
	if !ok || userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.stripeSvc.CancelSubscription(r.Context(), userID); err != nil {
		h.logger.Error().Err(err).Msg("failed to cancel subscription")
		http.Error(w, "failed to cancel subscription", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]bool{"cancel_at_period_end": true}); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode response")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}
