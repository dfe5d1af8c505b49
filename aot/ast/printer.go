package ast

import (
	"context"
	"slices"
	"strings"

	"github.com/abiiranathan/rx-aot/aot/errors"
)

// edit replaces the source range [start, end) with text. An edit with
// start == end is an insertion.
type edit struct {
	start, end uint32
	text       string
}

// overlaps reports whether two replacements share bytes. Insertions at the
// boundary of a range do not overlap it.
func (e edit) overlaps(o edit) bool {
	return e.start < o.end && o.start < e.end
}

// contains reports whether o lies entirely within e.
func (e edit) contains(o edit) bool {
	return e.start <= o.start && o.end <= e.end
}

// render applies edits to src. Insertions at the same offset keep their
// order and come before a replacement starting there.
func render(path string, src []byte, edits []edit) (string, error) {
	if len(edits) == 0 {
		return string(src), nil
	}

	sorted := slices.Clone(edits)
	slices.SortStableFunc(sorted, func(a, b edit) int {
		if a.start != b.start {
			return int(a.start) - int(b.start)
		}
		return int(a.end) - int(b.end)
	})

	var b strings.Builder
	b.Grow(len(src) + len(src)/4)

	var pos uint32
	for _, e := range sorted {
		if e.start < pos || int(e.end) > len(src) || e.end < e.start {
			return "", errors.New(errors.PhasePrint, errors.KindStructural).
				Path(path).
				Detail("conflicting edit at bytes %d..%d", e.start, e.end).
				Build()
		}
		b.Write(src[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.Write(src[pos:])

	return b.String(), nil
}

// print renders the edited module and verifies it still parses with the
// module's grammar. Any failure here is fatal for the module.
func (t *Tree) print(ctx context.Context, edits []edit) (string, error) {
	out, err := render(t.Path, t.Source, edits)
	if err != nil {
		return "", err
	}
	if len(edits) == 0 {
		return out, nil
	}

	check, err := parseWith(ctx, t.lang, []byte(out))
	if err != nil {
		return "", errors.New(errors.PhasePrint, errors.KindStructural).
			Path(t.Path).
			Cause(err).
			Detail("failed to re-parse transformed module").
			Build()
	}
	defer check.Close()

	if check.RootNode().HasError() {
		line, col := firstError(check.RootNode())
		return "", errors.New(errors.PhasePrint, errors.KindStructural).
			Path(t.Path).
			Detail("transformed module is not valid near line %d, column %d", line, col).
			Build()
	}
	return out, nil
}
