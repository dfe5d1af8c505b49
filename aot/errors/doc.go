// Package errors provides the structured error types shared by the inliner.
//
// Errors are categorized by Phase (the pipeline stage that failed) and Kind
// (what went wrong). Call-site failures are built with the Builder:
//
//	err := errors.New(errors.PhaseExtract, errors.KindUnknownProperty).
//		Path("foo").
//		Detail("unexpected property %q", "foo").
//		Build()
//
// Two errors compare equal under errors.Is when their phase and kind match,
// so callers can test for a category without inspecting messages:
//
//	errors.Is(err, errors.New(errors.PhaseExtract, errors.KindUnknownProperty).Build())
//
// or, more conveniently, with IsKind.
package errors
