package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates which stage of the transform produced the error
type Phase string

const (
	PhaseParse   Phase = "parse"   // module or fragment parsing
	PhaseExtract Phase = "extract" // call argument analysis
	PhaseResolve Phase = "resolve" // template source resolution
	PhaseCompile Phase = "compile" // template compilation service
	PhaseSplice  Phase = "splice"  // generated code validation
	PhaseImport  Phase = "import"  // import reconciliation
	PhasePrint   Phase = "print"   // serialization
	PhaseConfig  Phase = "config"  // configuration loading
)

// Kind categorizes the error
type Kind string

const (
	KindUnsupportedArgumentShape  Kind = "unsupported_argument_shape"
	KindUnknownProperty           Kind = "unknown_property"
	KindInvalidURLFormat          Kind = "invalid_url_format"
	KindUnoptimizableHTMLProperty Kind = "unoptimizable_html_property"
	KindMissingTemplateSource     Kind = "missing_template_source"
	KindDuplicateTemplateSource   Kind = "duplicate_template_source"
	KindMalformedCall             Kind = "malformed_call"
	KindUnresolvedImport          Kind = "unresolved_import"
	KindUnsupportedImport         Kind = "unsupported_import"
	KindInvalidGeneratedTree      Kind = "invalid_generated_tree"
	KindReadFailed                Kind = "read_failed"
	KindCompileFailed             Kind = "compile_failed"
	KindSyntax                    Kind = "syntax"
	KindStructural                Kind = "structural"
	KindInvalidConfig             Kind = "invalid_config"
)

// Error is the structured error type used throughout the inliner
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the property path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's tree holds an *Error of the given kind,
// whatever its phase. Joined and combined errors are searched too.
func IsKind(err error, kind Kind) bool {
	switch e := err.(type) {
	case nil:
		return false
	case *Error:
		return e.Kind == kind || IsKind(e.Cause, kind)
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if IsKind(inner, kind) {
				return true
			}
		}
		return false
	default:
		return IsKind(stderrors.Unwrap(err), kind)
	}
}

// Convenience constructors for common error patterns

// UnknownProperty creates an error for an unrecognized object key
func UnknownProperty(name string) *Error {
	return &Error{
		Phase:  PhaseExtract,
		Kind:   KindUnknownProperty,
		Path:   []string{name},
		Detail: fmt.Sprintf("unexpected property %q", name),
		Value:  name,
	}
}

// Unsupported creates an unsupported argument shape error
func Unsupported(what string) *Error {
	return &Error{
		Phase:  PhaseExtract,
		Kind:   KindUnsupportedArgumentShape,
		Detail: what,
	}
}

// ReadFailed wraps a template file read failure
func ReadFailed(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindReadFailed,
		Detail: fmt.Sprintf("cannot read template %s", path),
		Value:  path,
		Cause:  cause,
	}
}

// CompileFailed wraps an error reported by the template compiler
func CompileFailed(cause error) *Error {
	return &Error{
		Phase:  PhaseCompile,
		Kind:   KindCompileFailed,
		Detail: "template compilation failed",
		Cause:  cause,
	}
}

// InvalidConfig creates a configuration error for the named field
func InvalidConfig(field, detail string, args ...any) *Error {
	return &Error{
		Phase:  PhaseConfig,
		Kind:   KindInvalidConfig,
		Path:   []string{field},
		Detail: fmt.Sprintf(detail, args...),
	}
}
