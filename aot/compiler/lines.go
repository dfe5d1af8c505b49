package compiler

import "strings"

// Lines is an ordered, printable code fragment. It is never parsed by the
// inliner itself; the compiler receives and returns code in this form.
type Lines []string

// SplitLines splits raw source text into Lines without trimming anything.
func SplitLines(s string) Lines {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return Lines(strings.Split(s, "\n"))
}

// String joins the lines with newlines.
func (l Lines) String() string {
	return strings.Join(l, "\n")
}

// Indent returns a copy of l with every line indented by two spaces.
func (l Lines) Indent() Lines {
	out := make(Lines, len(l))
	for i, line := range l {
		out[i] = "  " + line
	}
	return out
}

// Optional drops lines that are empty or whitespace-only. A result of length
// zero means the fragment carries no code.
func (l Lines) Optional() Lines {
	out := make(Lines, 0, len(l))
	for _, line := range l {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
