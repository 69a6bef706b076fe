package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/gatekeeper/internal/middleware"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
)

// FormServiceInterface accepts admitted public form submissions
type FormServiceInterface interface {
	SubmitCourierCall(ctx context.Context, clientIP string, req services.CourierCallRequest) error
	SubmitApplication(ctx context.Context, clientIP string, req services.ApplicationRequest) error
}

// FormHandler handles the public forms. Admission has already run by the
// time these handlers see a request.
type FormHandler struct {
	service  FormServiceInterface
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewFormHandler creates a new FormHandler
func NewFormHandler(service FormServiceInterface, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *FormHandler {
	return &FormHandler{service: service, ipConfig: ipConfig, logger: logger}
}

type submissionResponse struct {
	Status string `json:"status"`
}

// CourierCall handles POST /forms/courier-call
func (h *FormHandler) CourierCall(w http.ResponseWriter, r *http.Request) {
	var req services.CourierCallRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.SubmitCourierCall(r.Context(), middleware.ClientIP(r, h.ipConfig), req); err != nil {
		pkghttp.WriteInternalError(w, "Failed to submit request")
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, submissionResponse{Status: "received"})
}

// Application handles POST /forms/application
func (h *FormHandler) Application(w http.ResponseWriter, r *http.Request) {
	var req services.ApplicationRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.SubmitApplication(r.Context(), middleware.ClientIP(r, h.ipConfig), req); err != nil {
		pkghttp.WriteInternalError(w, "Failed to submit application")
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, submissionResponse{Status: "received"})
}
