package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/justAlves/estudeai-sub000/internal/model"
	"github.com/justAlves/estudeai-sub000/internal/service"
)

// pagination parses the limit/offset query parameters with defaults.
func pagination(r *http.Request) (int, int) {
	limit := 20
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// writeQuotaDenied answers an exhausted weekly quota with the admission
// verdict so clients can show the denial reason.
func writeQuotaDenied(ctx context.Context, w http.ResponseWriter, subSvc service.SubscriptionService, userID string, resource model.ResourceType) {
	adm, err := subSvc.CanStart(ctx, userID, resource)
	if err != nil || adm.Allowed {
		adm = service.Admission{Allowed: false, Reason: "weekly generation limit reached"}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	json.NewEncoder(w).Encode(adm)
}
