// Package faults classifies pipeline failures into a fixed taxonomy and
// renders user-facing messages for them. Every stage of URL processing
// reports errors through this package so that batch results carry a
// uniform failure shape.
package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind identifies a failure category.
type Kind string

const (
	KindNetwork        Kind = "network_error"
	KindTimeout        Kind = "timeout_error"
	KindParse          Kind = "parse_error"
	KindLLMUnavailable Kind = "llm_unavailable"
	KindPermission     Kind = "permission_error"
	KindConfig         Kind = "config_error"
	KindUnknownCommand Kind = "unknown_command"
	KindUnknown        Kind = "unknown_error"
)

// Severity grades how serious a fault is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

var severityByKind = map[Kind]Severity{
	KindNetwork:        SeverityError,
	KindTimeout:        SeverityError,
	KindParse:          SeverityWarning,
	KindLLMUnavailable: SeverityWarning,
	KindPermission:     SeverityError,
	KindConfig:         SeverityCritical,
	KindUnknownCommand: SeverityWarning,
	KindUnknown:        SeverityError,
}

// Fault is a classified failure with the context it occurred in.
// Kind and Severity are always set.
type Fault struct {
	Kind     Kind
	Severity Severity
	Message  string
	URL      string
	Stage    string
	Err      error
}

func (f *Fault) Error() string {
	msg := f.Message
	if msg == "" {
		msg = string(f.Kind)
	}
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

func (f *Fault) Unwrap() error { return f.Err }

// Is lets errors.Is match faults by kind.
func (f *Fault) Is(target error) bool {
	var other *Fault
	if errors.As(target, &other) {
		return f.Kind == other.Kind
	}
	return false
}

// New builds a fault of the given kind with severity from the taxonomy.
func New(kind Kind, stage, url string, err error) *Fault {
	sev, ok := severityByKind[kind]
	if !ok {
		kind, sev = KindUnknown, SeverityError
	}
	return &Fault{
		Kind:     kind,
		Severity: sev,
		Message:  messageFor(kind),
		URL:      url,
		Stage:    stage,
		Err:      err,
	}
}

// Classify maps an arbitrary error onto the taxonomy. Typed errors are
// checked first; string heuristics are only a fallback for opaque
// third-party failures. Unmatched errors become KindUnknown with
// severity error, never a classification failure.
func Classify(err error, stage, url string) *Fault {
	if err == nil {
		return New(KindUnknown, stage, url, nil)
	}

	var f *Fault
	if errors.As(err, &f) {
		// Already classified upstream; fill in missing context.
		out := *f
		if out.URL == "" {
			out.URL = url
		}
		if out.Stage == "" {
			out.Stage = stage
		}
		return &out
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(KindTimeout, stage, url, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return New(KindTimeout, stage, url, err)
		}
		return New(KindNetwork, stage, url, err)
	}

	return New(heuristicKind(err), stage, url, err)
}

func heuristicKind(err error) Kind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return KindTimeout
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "dns"),
		strings.Contains(msg, "connect"),
		// Status phrasing like "HTTP 503", not any text embedding a URL.
		strings.Contains(msg, "http "):
		return KindNetwork
	case strings.Contains(msg, "parse") || strings.Contains(msg, "malformed") || strings.Contains(msg, "empty content"):
		return KindParse
	case strings.Contains(msg, "llm") || strings.Contains(msg, "provider") || strings.Contains(msg, "model"):
		return KindLLMUnavailable
	case strings.Contains(msg, "permission") || strings.Contains(msg, "denied") || strings.Contains(msg, "unauthorized"):
		return KindPermission
	case strings.Contains(msg, "config"):
		return KindConfig
	default:
		return KindUnknown
	}
}

type template struct {
	message string
	hint    string
}

var templates = map[Kind]template{
	KindNetwork:        {"network request failed", "check the URL and your network connection"},
	KindTimeout:        {"request timed out", "the target is responding slowly, try again later"},
	KindParse:          {"content could not be parsed", "the page structure may be unusual or empty"},
	KindLLMUnavailable: {"LLM analysis unavailable", "falling back to basic content analysis"},
	KindPermission:     {"permission denied", "this command or resource is not available to you"},
	KindConfig:         {"configuration error", "check the configuration file and restart"},
	KindUnknownCommand: {"unknown command", "use the help command to list available commands"},
	KindUnknown:        {"unexpected error", "check the logs for details"},
}

func messageFor(kind Kind) string {
	if t, ok := templates[kind]; ok {
		return t.message
	}
	return templates[KindUnknown].message
}

// Render builds the user-facing message for a fault. It never fails:
// unknown kinds fall back to the generic template. Raw internal error
// text is summarized, not exposed verbatim beyond a short detail line.
func Render(f *Fault) string {
	t, ok := templates[f.Kind]
	if !ok {
		t = templates[KindUnknown]
	}

	var b strings.Builder
	b.WriteString("❌ " + t.message)
	if f.URL != "" {
		b.WriteString("\n🔗 " + f.URL)
	}
	if f.Stage != "" {
		b.WriteString("\n📋 stage: " + f.Stage)
	}
	if f.Err != nil {
		detail := f.Err.Error()
		if len(detail) > 100 {
			detail = detail[:100] + "..."
		}
		b.WriteString("\n📝 detail: " + detail)
	}
	b.WriteString("\n💡 " + t.hint)
	return b.String()
}
