// Package threat holds the per-request heuristic detectors and the standing
// suspicious-IP ban list they escalate into.
package threat

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// MaxBodyBytes is the largest declared request body accepted
const MaxBodyBytes int64 = 1 << 20

// overrideHeaders are forwarded/override-style headers that must never
// carry markup
var overrideHeaders = []string{
	"X-Forwarded-For",
	"X-Forwarded-Host",
	"X-Forwarded-Proto",
	"X-Real-IP",
	"X-Client-IP",
	"X-Original-URL",
	"X-Rewrite-URL",
	"X-HTTP-Method-Override",
}

// Rule identifies which detector fired
type Rule string

const (
	RuleSuspiciousIP    Rule = "suspicious_ip"
	RuleHeaderInjection Rule = "header_injection"
	RuleScannerAgent    Rule = "scanner_user_agent"
	RuleMaliciousURL    Rule = "malicious_url"
	RulePayloadSize     Rule = "payload_too_large"
)

// Request is the slice of a request the detectors read
type Request interface {
	ClientIP() string
	Header(name string) string
	Path() string
	RawQuery() string
	ContentLength() int64
}

// Finding describes a rejected request. Detail is for operators only.
type Finding struct {
	Rule      Rule
	Status    int
	Detail    string
	Escalated bool
}

// Inspector runs the detectors in order and escalates scanner fingerprints
// into the suspicious set.
type Inspector struct {
	suspicious   *SuspiciousIPSet
	signatures   Signatures
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewInspector creates an Inspector. maxBodyBytes <= 0 uses MaxBodyBytes.
func NewInspector(suspicious *SuspiciousIPSet, signatures Signatures, maxBodyBytes int64, logger *slog.Logger) *Inspector {
	if maxBodyBytes <= 0 {
		maxBodyBytes = MaxBodyBytes
	}
	return &Inspector{
		suspicious:   suspicious,
		signatures:   signatures,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// Suspicious returns the ban list the inspector escalates into
func (i *Inspector) Suspicious() *SuspiciousIPSet {
	return i.suspicious
}

// Inspect returns the first finding for req, or nil if the request is clean.
// A flagged IP short-circuits every other check.
func (i *Inspector) Inspect(req Request) *Finding {
	ip := req.ClientIP()

	if i.suspicious.Contains(ip) {
		return &Finding{
			Rule:   RuleSuspiciousIP,
			Status: http.StatusForbidden,
			Detail: "ip is on the suspicious list",
		}
	}

	if f := i.checkHeaders(req); f != nil {
		return f
	}

	if f := i.checkUserAgent(ip, req.Header("User-Agent")); f != nil {
		return f
	}

	if f := i.checkURL(req.Path(), req.RawQuery()); f != nil {
		return f
	}

	if n := req.ContentLength(); n > i.maxBodyBytes {
		return &Finding{
			Rule:   RulePayloadSize,
			Status: http.StatusRequestEntityTooLarge,
			Detail: fmt.Sprintf("declared body %d bytes exceeds %d", n, i.maxBodyBytes),
		}
	}

	return nil
}

func (i *Inspector) checkHeaders(req Request) *Finding {
	for _, name := range overrideHeaders {
		value := strings.ToLower(req.Header(name))
		if value == "" {
			continue
		}
		if sig, ok := containsAny(value, i.signatures.HeaderMarkup); ok {
			return &Finding{
				Rule:   RuleHeaderInjection,
				Status: http.StatusBadRequest,
				Detail: fmt.Sprintf("header %s matched %q", name, sig),
			}
		}
	}
	return nil
}

func (i *Inspector) checkUserAgent(ip, userAgent string) *Finding {
	sig, ok := containsAny(strings.ToLower(userAgent), i.signatures.ScannerAgents)
	if !ok {
		return nil
	}

	escalated := i.suspicious.Add(ip, "scanner user agent: "+sig, userAgent)
	if escalated && i.logger != nil {
		i.logger.Warn("ip flagged as suspicious",
			slog.String("ip_address", ip),
			slog.String("signature", sig))
	}
	return &Finding{
		Rule:      RuleScannerAgent,
		Status:    http.StatusForbidden,
		Detail:    fmt.Sprintf("user agent matched %q", sig),
		Escalated: true,
	}
}

func (i *Inspector) checkURL(path, rawQuery string) *Finding {
	target := path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	target = strings.ToLower(target)

	candidates := []string{target}
	if decoded, err := url.QueryUnescape(target); err == nil && decoded != target {
		candidates = append(candidates, decoded)
	}

	for _, c := range candidates {
		if sig, ok := containsAny(c, i.signatures.URLPatterns); ok {
			return &Finding{
				Rule:   RuleMaliciousURL,
				Status: http.StatusBadRequest,
				Detail: fmt.Sprintf("url matched %q", sig),
			}
		}
	}
	return nil
}

func containsAny(s string, needles []string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, n := range needles {
		if strings.Contains(s, n) {
			return n, true
		}
	}
	return "", false
}
