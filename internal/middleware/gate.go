package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/BradenHooton/gatekeeper/internal/gate"
	"github.com/BradenHooton/gatekeeper/internal/threat"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
)

type requestContextKey struct{}

// HTTPRequest adapts an *http.Request to gate.Request. Body fields are read
// lazily, capped at threat.MaxBodyBytes, and the body is restored for the
// downstream handler.
type HTTPRequest struct {
	r        *http.Request
	clientIP string

	once     sync.Once
	fields   []bodyField
	bodyLen  int64
	bodyErr  error
	tooLarge bool
}

// bodyField is one top-level member of a JSON object body, in document order
type bodyField struct {
	name     string
	value    string
	isString bool
}

// NewHTTPRequest builds the gate view of r
func NewHTTPRequest(r *http.Request, ipConfig *pkghttp.IPConfig) *HTTPRequest {
	return &HTTPRequest{
		r:        r,
		clientIP: pkghttp.ExtractClientIP(r, ipConfig),
	}
}

func (h *HTTPRequest) ClientIP() string          { return h.clientIP }
func (h *HTTPRequest) Header(name string) string { return h.r.Header.Get(name) }
func (h *HTTPRequest) Path() string              { return h.r.URL.Path }
func (h *HTTPRequest) RawQuery() string          { return h.r.URL.RawQuery }
func (h *HTTPRequest) Method() string            { return h.r.Method }

// ContentLength returns the declared body size. A body of unknown length
// (chunked) is read to measure it, and an oversized one reports one byte
// over the cap.
func (h *HTTPRequest) ContentLength() int64 {
	if h.r.ContentLength >= 0 {
		return h.r.ContentLength
	}
	h.once.Do(h.readBody)
	if h.tooLarge {
		return threat.MaxBodyBytes + 1
	}
	return h.bodyLen
}

// Field returns a top-level string member of a JSON object body. Names
// match the way encoding/json fills a struct: case-insensitively, with the
// last matching member winning. A non-string last match yields "".
func (h *HTTPRequest) Field(name string) string {
	h.once.Do(h.readBody)
	for i := len(h.fields) - 1; i >= 0; i-- {
		f := h.fields[i]
		if strings.EqualFold(f.name, name) {
			if !f.isString {
				return ""
			}
			return f.value
		}
	}
	return ""
}

func (h *HTTPRequest) readBody() {
	if h.r.Body == nil || h.r.Body == http.NoBody {
		return
	}

	body, err := io.ReadAll(io.LimitReader(h.r.Body, threat.MaxBodyBytes+1))
	_ = h.r.Body.Close()
	h.r.Body = io.NopCloser(bytes.NewReader(body))
	h.bodyLen = int64(len(body))
	if err != nil {
		h.bodyErr = fmt.Errorf("failed to read body: %w", err)
		return
	}
	if h.bodyLen > threat.MaxBodyBytes {
		h.tooLarge = true
		return
	}

	// the handler reports malformed JSON
	h.fields = parseFields(body)
}

// parseFields lists the members of a JSON object in document order. It
// returns nil when the first value is not a well-formed object.
func parseFields(body []byte) []bodyField {
	// only the first value counts, as with the handler's json.Decoder
	var object json.RawMessage
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&object); err != nil {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(object))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	var fields []bodyField
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		name, ok := tok.(string)
		if !ok {
			return nil
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil
		}
		// null leaves a struct field untouched
		if string(raw) == "null" {
			continue
		}
		f := bodyField{name: name}
		f.isString = json.Unmarshal(raw, &f.value) == nil
		fields = append(fields, f)
	}
	return fields
}

// GateRequest returns the request view stored by Admission.Guard, or builds
// one when the route was not guarded
func GateRequest(r *http.Request, ipConfig *pkghttp.IPConfig) *HTTPRequest {
	if req, ok := r.Context().Value(requestContextKey{}).(*HTTPRequest); ok {
		return req
	}
	return NewHTTPRequest(r, ipConfig)
}

// ClientIP returns the resolved client address for r
func ClientIP(r *http.Request, ipConfig *pkghttp.IPConfig) string {
	return GateRequest(r, ipConfig).ClientIP()
}

// Admission runs the gate pipeline in front of HTTP handlers
type Admission struct {
	gate     *gate.Gate
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAdmission creates an Admission middleware factory
func NewAdmission(g *gate.Gate, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *Admission {
	return &Admission{gate: g, ipConfig: ipConfig, logger: logger}
}

// Guard screens requests for route before they reach the handler
func (a *Admission) Guard(route gate.Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := NewHTTPRequest(r, a.ipConfig)

			if err := a.gate.Guard(req, route); err != nil {
				if !WriteRejection(w, err) {
					a.logger.Error("admission failed", slog.String("route", route.Name), slog.Any("error", err))
					pkghttp.WriteInternalError(w, "Internal server error")
				}
				return
			}

			if req.tooLarge {
				pkghttp.WritePayloadTooLarge(w, "Request body too large")
				return
			}
			if req.bodyErr != nil {
				pkghttp.WriteBadRequest(w, "Invalid request body")
				return
			}

			ctx := context.WithValue(r.Context(), requestContextKey{}, req)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WriteRejection writes err as an HTTP error if it is a gate rejection.
// It reports false for any other error so the caller can handle it.
func WriteRejection(w http.ResponseWriter, err error) bool {
	rej, ok := gate.AsRejection(err)
	if !ok {
		return false
	}
	if rej.RetryAfter > 0 || rej.Status == http.StatusTooManyRequests {
		pkghttp.WriteErrorRetryAfter(w, rej.Status, rej.Code, rej.Message, rej.RetryAfter)
		return true
	}
	pkghttp.WriteError(w, rej.Status, rej.Code, rej.Message)
	return true
}
