package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/ratelimit"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
)

// FormKind names the public form a submission came from
type FormKind string

const (
	FormCourierCall FormKind = "courier_call"
	FormApplication FormKind = "application"
)

// Submission is an admitted public form submission
type Submission struct {
	Kind        FormKind          `json:"kind"`
	Fields      map[string]string `json:"fields"`
	ClientIP    string            `json:"client_ip"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// FormSink receives admitted submissions. Persistence and notification live
// behind this interface.
type FormSink interface {
	Deliver(ctx context.Context, s Submission) error
}

// LogSink writes submissions to the structured log with identities masked
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver logs the submission
func (l *LogSink) Deliver(ctx context.Context, s Submission) error {
	attrs := []slog.Attr{
		slog.String("kind", string(s.Kind)),
		slog.String("client_ip", s.ClientIP),
		slog.Time("submitted_at", s.SubmittedAt),
	}
	if phone, ok := s.Fields["phone"]; ok {
		attrs = append(attrs, slog.String("phone", pkglogger.MaskedPhone(phone)))
	}
	if email, ok := s.Fields["email"]; ok {
		attrs = append(attrs, slog.String("email", pkglogger.SanitizedEmail(email)))
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, "form submission received", attrs...)
	return nil
}

// CourierCallRequest asks for a courier call-back
type CourierCallRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Phone string `json:"phone" validate:"required,min=7,max=32,phone_digits"`
}

// ApplicationRequest is a job application
type ApplicationRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Message string `json:"message" validate:"max=5000"`
}

// FormService hands admitted submissions to the sink
type FormService struct {
	sink   FormSink
	logger *slog.Logger
	now    func() time.Time
}

// NewFormService creates a FormService. A nil clock defaults to time.Now.
func NewFormService(sink FormSink, logger *slog.Logger, clock func() time.Time) *FormService {
	if clock == nil {
		clock = time.Now
	}
	return &FormService{sink: sink, logger: logger, now: clock}
}

// SubmitCourierCall delivers a courier call-back request
func (s *FormService) SubmitCourierCall(ctx context.Context, clientIP string, req CourierCallRequest) error {
	return s.deliver(ctx, Submission{
		Kind: FormCourierCall,
		Fields: map[string]string{
			"name":  req.Name,
			"phone": ratelimit.NormalizePhone(req.Phone),
		},
		ClientIP: clientIP,
	})
}

// SubmitApplication delivers a job application
func (s *FormService) SubmitApplication(ctx context.Context, clientIP string, req ApplicationRequest) error {
	return s.deliver(ctx, Submission{
		Kind: FormApplication,
		Fields: map[string]string{
			"name":    req.Name,
			"email":   ratelimit.NormalizeEmail(req.Email),
			"message": req.Message,
		},
		ClientIP: clientIP,
	})
}

func (s *FormService) deliver(ctx context.Context, sub Submission) error {
	sub.SubmittedAt = s.now()
	if err := s.sink.Deliver(ctx, sub); err != nil {
		s.logger.Error("failed to deliver form submission", slog.String("kind", string(sub.Kind)), slog.Any("error", err))
		return fmt.Errorf("failed to deliver %s submission: %w", sub.Kind, err)
	}
	return nil
}
