package source

import "fmt"

// Severity of a diagnostic.
type Severity int

// Diagnostic severities.
const (
	Error Severity = iota
	Warning
	Note
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Note:
		return "note"
	}
	return "unknown"
}

// Diagnostic codes, grouped by pipeline stage.
const (
	// Instruction errors (2xxx)
	CodeInvalidOpcode       uint32 = 2001
	CodeInvalidOperandCount uint32 = 2002
	CodeInvalidOperandType  uint32 = 2003
	CodeTypeMismatch        uint32 = 2004
	CodeMissingOperand      uint32 = 2005
	CodeExtraOperand        uint32 = 2006

	// Type errors (3xxx)
	CodeInvalidType       uint32 = 3001
	CodeIncompatibleTypes uint32 = 3002
	CodeValueOutOfRange   uint32 = 3003

	// Section and layout errors (4xxx)
	CodeInvalidSection   uint32 = 4001
	CodeInvalidAlignment uint32 = 4002

	// Symbol errors (5xxx)
	CodeUndefinedSymbol uint32 = 5001
	CodeDuplicateSymbol uint32 = 5002

	// Relocation errors (6xxx)
	CodeRelocationRange uint32 = 6001

	// General syntax errors (9xxx)
	CodeSyntaxError     uint32 = 9001
	CodeUnexpectedToken uint32 = 9002
	CodeInternalError   uint32 = 9999
)

// Diagnostic is one structured problem report. The core never formats
// diagnostics itself; front ends call String.
type Diagnostic struct {
	Severity Severity
	Code     uint32
	Message  string
	Location Location
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%s: [0x%08x] %s", d.Severity, d.Location, d.Code, d.Message)
}

// Errorf builds an Error diagnostic.
func Errorf(code uint32, loc Location, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: Error,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	}
}

// Warningf builds a Warning diagnostic.
func Warningf(code uint32, loc Location, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: Warning,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	}
}

// HasErrors reports whether any diagnostic in the list has Error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == Error {
			return true
		}
	}
	return false
}
