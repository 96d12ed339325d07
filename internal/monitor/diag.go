package monitor

import (
	"fmt"

	"github.com/coreman2200/ledring/internal/protocol"
)

// Severity grades a diagnostic.
type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Code identifies what a diagnostic is about. The prefix names the
// subsystem that raised it.
type Code string

const (
	CodeTimeout    Code = "PROTO.TIMEOUT"
	CodeUnknownCmd Code = "PROTO.UNKNOWN_CMD"
	CodeLength     Code = "PROTO.LENGTH"
	CodeProtocol   Code = "PROTO.ERROR"
	CodeRender     Code = "BCM.RENDER"
	CodeTestRun    Code = "TEST.RUNNING"
	CodeTestDone   Code = "TEST.DONE"
)

// Diagnostic is one entry pushed to /diag clients.
type Diagnostic struct {
	Severity Severity       `json:"severity"`
	Code     Code           `json:"code"`
	Summary  string         `json:"summary"`
	Detail   string         `json:"detail,omitempty"`
	Causes   []string       `json:"likely_causes,omitempty"`
	Fixes    []string       `json:"suggested_fixes,omitempty"`
	Evidence map[string]any `json:"evidence,omitempty"`
}

// frameDiagnostic describes a rejected command frame. It reports false for
// a successful one.
func frameDiagnostic(status protocol.Status, detail string, capacity int) (Diagnostic, bool) {
	d := Diagnostic{Severity: Warn, Summary: "Command frame rejected", Detail: detail}
	switch status {
	case protocol.StatusSuccess:
		return d, false
	case protocol.StatusTimeout:
		d.Code = CodeTimeout
		d.Causes = []string{"host sent fewer bytes than the length byte announced", "baud rate mismatch"}
	case protocol.StatusUnknownCmd:
		d.Code = CodeUnknownCmd
		d.Fixes = []string{fmt.Sprintf("use action %#02x (SetColors)", protocol.ActionSetColors)}
	case protocol.StatusLength:
		d.Code = CodeLength
		d.Fixes = []string{fmt.Sprintf("send at most %d payload bytes", capacity)}
	default:
		d.Code, d.Severity = CodeProtocol, Err
	}
	return d, true
}
