package gate

import (
	"github.com/BradenHooton/gatekeeper/internal/ratelimit"
)

// Request is the normalized view of an incoming request the gate depends on.
// It is deliberately independent of any web framework.
type Request interface {
	ClientIP() string
	Header(name string) string
	Path() string
	RawQuery() string
	Method() string
	ContentLength() int64
	// Field returns a top-level body field such as "email" or "phone"
	Field(name string) string
}

// LimitRule binds a rate limit scope to the request attribute it is keyed on
type LimitRule struct {
	Scope    ratelimit.Scope
	Identity func(Request) string
}

// Route describes which limiters guard an endpoint
type Route struct {
	Name   string
	Limits []LimitRule
}

func byIP(r Request) string { return r.ClientIP() }

func byPhone(r Request) string { return ratelimit.NormalizePhone(r.Field("phone")) }

func byEmail(r Request) string { return ratelimit.NormalizeEmail(r.Field("email")) }

// Routes guarded by the gate. The per-identity and per-IP limiters are
// independent: either one can reject.
var (
	RouteLogin = Route{
		Name: "login",
		Limits: []LimitRule{
			{Scope: ratelimit.ScopeAuthIP, Identity: byIP},
		},
	}
	RouteCourierCall = Route{
		Name: "courier_call",
		Limits: []LimitRule{
			{Scope: ratelimit.ScopeCourierPhone, Identity: byPhone},
			{Scope: ratelimit.ScopeCourierIP, Identity: byIP},
		},
	}
	RouteApplication = Route{
		Name: "application",
		Limits: []LimitRule{
			{Scope: ratelimit.ScopeApplicationEmail, Identity: byEmail},
			{Scope: ratelimit.ScopeApplicationIP, Identity: byIP},
		},
	}
	// RouteScreenOnly runs the heuristics without any limiter
	RouteScreenOnly = Route{Name: "screen"}
)
