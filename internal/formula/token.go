// Package formula implements the BOQ formula templating engine: extracting a
// generalized template from an exemplar worksheet row, re-applying it across
// row ranges, and statically checking the references of the written formulas.
//
// Formula text is never evaluated. It is tokenized into cell references and
// opaque text so that row substitution cannot touch string literals, sheet
// names, or function names that happen to look like references.
package formula

import (
	"strconv"
	"strings"
)

// Placeholder is the row-index token used in generalized formula text,
// e.g. "=B{row}*C{row}".
const Placeholder = "{row}"

// Ref is a single cell reference found in formula text.
type Ref struct {
	Sheet         string // empty when the reference is unqualified
	SheetQuoted   bool   // sheet name was written as 'Emb Height'!
	Column        string
	AbsCol        bool // column is $-anchored
	AbsRow        bool // row is $-anchored and must never shift
	Row           int  // concrete 1-indexed row; 0 while IsPlaceholder
	IsPlaceholder bool
}

// String reconstructs the reference exactly as it appears in formula text.
func (r Ref) String() string {
	var b strings.Builder
	if r.Sheet != "" {
		if r.SheetQuoted {
			b.WriteByte('\'')
			b.WriteString(r.Sheet)
			b.WriteByte('\'')
		} else {
			b.WriteString(r.Sheet)
		}
		b.WriteByte('!')
	}
	if r.AbsCol {
		b.WriteByte('$')
	}
	b.WriteString(r.Column)
	if r.AbsRow {
		b.WriteByte('$')
	}
	if r.IsPlaceholder {
		b.WriteString(Placeholder)
	} else {
		b.WriteString(strconv.Itoa(r.Row))
	}
	return b.String()
}

type segKind uint8

const (
	segText segKind = iota
	segRef
)

// segment is one token of a parsed formula: either opaque text (operators,
// function names, string literals) or a cell reference.
type segment struct {
	kind segKind
	text string
	ref  Ref
}

// parseFormula splits formula text into text and reference segments.
// Concatenating the segments always reproduces the input byte for byte.
func parseFormula(formula string) []segment {
	var segs []segment
	var text strings.Builder

	flush := func() {
		if text.Len() > 0 {
			segs = append(segs, segment{kind: segText, text: text.String()})
			text.Reset()
		}
	}

	i := 0
	var prev byte
	for i < len(formula) {
		c := formula[i]

		// String literals are opaque; "" escapes a quote.
		if c == '"' {
			j := i + 1
			for j < len(formula) {
				if formula[j] == '"' {
					if j+1 < len(formula) && formula[j+1] == '"' {
						j += 2
						continue
					}
					j++
					break
				}
				j++
			}
			text.WriteString(formula[i:j])
			prev = '"'
			i = j
			continue
		}

		// Quoted sheet qualifier: 'Emb Height'!B7
		if c == '\'' {
			if ref, n, ok := matchQuotedSheetRef(formula[i:]); ok {
				flush()
				segs = append(segs, segment{kind: segRef, ref: ref})
				prev = 0
				i += n
				continue
			}
			text.WriteByte(c)
			prev = c
			i++
			continue
		}

		// A reference can only start where an identifier could start, and
		// never in the middle of one (e.g. the "E7" inside "RATE7").
		if (isRefStart(c)) && !isIdentByte(prev) {
			if ref, n, ok := matchRef(formula[i:]); ok {
				flush()
				segs = append(segs, segment{kind: segRef, ref: ref})
				prev = 0
				i += n
				continue
			}
		}

		text.WriteByte(c)
		prev = c
		i++
	}
	flush()
	return segs
}

// renderFormula concatenates segments back into formula text.
func renderFormula(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.kind == segRef {
			b.WriteString(s.ref.String())
		} else {
			b.WriteString(s.text)
		}
	}
	return b.String()
}

// matchRef matches an optionally sheet-qualified cell reference at the start
// of s: [Sheet!]$?COL$?(ROW|{row}). Returns the parsed reference and the
// number of bytes consumed.
func matchRef(s string) (Ref, int, bool) {
	var ref Ref
	i := 0

	// Unquoted sheet qualifier.
	j := i
	for j < len(s) && isSheetNameByte(s[j]) {
		j++
	}
	if j > i && j < len(s) && s[j] == '!' {
		ref.Sheet = s[i:j]
		i = j + 1
	}

	n, ok := matchCellPart(s[i:], &ref)
	if !ok {
		return Ref{}, 0, false
	}
	i += n

	// A trailing identifier byte or call paren means this was a defined
	// name or function, not a reference.
	if i < len(s) && (isIdentByte(s[i]) || s[i] == '(') {
		return Ref{}, 0, false
	}
	return ref, i, true
}

// matchQuotedSheetRef matches 'Sheet Name'!$?COL$?(ROW|{row}) at the start of s.
func matchQuotedSheetRef(s string) (Ref, int, bool) {
	if len(s) < 2 || s[0] != '\'' {
		return Ref{}, 0, false
	}
	j := 1
	for j < len(s) && s[j] != '\'' {
		j++
	}
	if j >= len(s) || j+1 >= len(s) || s[j+1] != '!' {
		return Ref{}, 0, false
	}

	ref := Ref{Sheet: s[1:j], SheetQuoted: true}
	i := j + 2
	n, ok := matchCellPart(s[i:], &ref)
	if !ok {
		return Ref{}, 0, false
	}
	i += n
	if i < len(s) && (isIdentByte(s[i]) || s[i] == '(') {
		return Ref{}, 0, false
	}
	return ref, i, true
}

// matchCellPart matches $?COL$?(ROW|{row}) and fills the column/row fields.
func matchCellPart(s string, ref *Ref) (int, bool) {
	i := 0
	if i < len(s) && s[i] == '$' {
		ref.AbsCol = true
		i++
	}

	colStart := i
	for i < len(s) && isColLetter(s[i]) {
		i++
	}
	colLen := i - colStart
	if colLen < 1 || colLen > 3 {
		return 0, false
	}
	ref.Column = s[colStart:i]

	if i < len(s) && s[i] == '$' {
		ref.AbsRow = true
		i++
	}

	if strings.HasPrefix(s[i:], Placeholder) {
		ref.IsPlaceholder = true
		return i + len(Placeholder), true
	}

	rowStart := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == rowStart {
		return 0, false
	}
	row, err := strconv.Atoi(s[rowStart:i])
	if err != nil || row < 1 {
		return 0, false
	}
	ref.Row = row
	return i, true
}

func isColLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isRefStart(b byte) bool {
	return isColLetter(b) || b == '$'
}

func isIdentByte(b byte) bool {
	return isColLetter(b) || (b >= '0' && b <= '9') || b == '_' || b == '$' || b == '.'
}

func isSheetNameByte(b byte) bool {
	return isColLetter(b) || (b >= '0' && b <= '9') || b == '_' || b == '.'
}

// Generalize rewrites every reference tied to sourceRow into a placeholder
// reference. Anchored ($-row) references and references to other rows stay
// literal; they act as fixed constants when the template is applied.
func Generalize(formula string, sourceRow int) string {
	segs := parseFormula(formula)
	for i := range segs {
		if segs[i].kind != segRef {
			continue
		}
		r := &segs[i].ref
		if !r.AbsRow && !r.IsPlaceholder && r.Row == sourceRow {
			r.IsPlaceholder = true
			r.Row = 0
		}
	}
	return renderFormula(segs)
}

// Substitute replaces every placeholder reference with the concrete target
// row, leaving all other references byte-identical.
func Substitute(generalized string, targetRow int) string {
	segs := parseFormula(generalized)
	for i := range segs {
		if segs[i].kind != segRef {
			continue
		}
		r := &segs[i].ref
		if r.IsPlaceholder {
			r.IsPlaceholder = false
			r.Row = targetRow
		}
	}
	return renderFormula(segs)
}

// References returns every cell reference found in formula text, in order.
func References(formula string) []Ref {
	var refs []Ref
	for _, s := range parseFormula(formula) {
		if s.kind == segRef {
			refs = append(refs, s.ref)
		}
	}
	return refs
}
