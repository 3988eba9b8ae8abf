package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneralize(t *testing.T) {
	t.Run("rewrites same-row references to placeholders", func(t *testing.T) {
		got := Generalize("=B5*C5", 5)
		assert.Equal(t, "=B{row}*C{row}", got)
	})

	t.Run("keeps row-anchored references fixed", func(t *testing.T) {
		got := Generalize("=B5*$D$2", 5)
		assert.Equal(t, "=B{row}*$D$2", got)

		got = Generalize("=B5*C$5", 5)
		assert.Equal(t, "=B{row}*C$5", got)
	})

	t.Run("keeps references to other rows as fixed anchors", func(t *testing.T) {
		got := Generalize("=SUM(GY7:GY5091)", 5091)
		assert.Equal(t, "=SUM(GY7:GY{row})", got)
	})

	t.Run("preserves column-only anchors", func(t *testing.T) {
		got := Generalize("=$B5+C5", 5)
		assert.Equal(t, "=$B{row}+C{row}", got)
	})

	t.Run("retains sheet qualifiers verbatim", func(t *testing.T) {
		got := Generalize("=Input!D15*'Emb Height'!C15", 15)
		assert.Equal(t, "=Input!D{row}*'Emb Height'!C{row}", got)
	})

	t.Run("ignores references inside string literals", func(t *testing.T) {
		got := Generalize(`=IF(A5>0,"see B5",C5)`, 5)
		assert.Equal(t, `=IF(A{row}>0,"see B5",C{row})`, got)
	})

	t.Run("does not mistake function names for references", func(t *testing.T) {
		got := Generalize("=LOG10(C10)+SUM(D10:D12)", 10)
		assert.Equal(t, "=LOG10(C{row})+SUM(D{row}:D12)", got)
	})

	t.Run("does not rewrite rows embedded in defined names", func(t *testing.T) {
		got := Generalize("=RATE7*B7", 7)
		assert.Equal(t, "=RATE7*B{row}", got)
	})
}

func TestSubstitute(t *testing.T) {
	t.Run("replaces placeholders with the target row", func(t *testing.T) {
		assert.Equal(t, "=B10*C10", Substitute("=B{row}*C{row}", 10))
		assert.Equal(t, "=B11*C11", Substitute("=B{row}*C{row}", 11))
	})

	t.Run("leaves anchored references byte-identical", func(t *testing.T) {
		for _, row := range []int{10, 11, 12} {
			got := Substitute("=B{row}*$D$2", row)
			assert.Contains(t, got, "$D$2")
		}
	})

	t.Run("substitutes inside ranges with a fixed start", func(t *testing.T) {
		assert.Equal(t, "=SUM(GY7:GY450)", Substitute("=SUM(GY7:GY{row})", 450))
	})

	t.Run("keeps sheet qualifiers", func(t *testing.T) {
		got := Substitute("='Emb Height'!C{row}-Input!D{row}", 42)
		assert.Equal(t, "='Emb Height'!C42-Input!D42", got)
	})

	t.Run("leaves formulas without placeholders untouched", func(t *testing.T) {
		const f = "=SUM($A$1:$A$6)"
		assert.Equal(t, f, Substitute(f, 99))
	})
}

func TestRoundTrip(t *testing.T) {
	// Extracting from row R and applying back to row R must reproduce the
	// original formula text exactly.
	formulas := []string{
		"=B15*C15",
		"=SUM(BY15:KX15)/$C$2",
		"=IF(C15=0,0,'Emb Height'!D15*C15)",
		`=CONCATENATE("km ",A15,"-",B15)`,
		"=VLOOKUP(E15,Input!$A$2:$F$40,3,FALSE)",
	}
	for _, f := range formulas {
		assert.Equal(t, f, Substitute(Generalize(f, 15), 15), "formula %q", f)
	}
}

func TestReferences(t *testing.T) {
	t.Run("collects references in order", func(t *testing.T) {
		refs := References("=B7+Input!C7*$D$2")
		require.Len(t, refs, 3)

		assert.Equal(t, "B", refs[0].Column)
		assert.Equal(t, 7, refs[0].Row)
		assert.Empty(t, refs[0].Sheet)

		assert.Equal(t, "Input", refs[1].Sheet)
		assert.False(t, refs[1].SheetQuoted)

		assert.True(t, refs[2].AbsCol)
		assert.True(t, refs[2].AbsRow)
		assert.Equal(t, 2, refs[2].Row)
	})

	t.Run("reports quoted sheet names", func(t *testing.T) {
		refs := References("='Emb Height'!B12")
		require.Len(t, refs, 1)
		assert.Equal(t, "Emb Height", refs[0].Sheet)
		assert.True(t, refs[0].SheetQuoted)
		assert.Equal(t, "'Emb Height'!B12", refs[0].String())
	})

	t.Run("reports placeholders", func(t *testing.T) {
		refs := References("=B{row}*C7")
		require.Len(t, refs, 2)
		assert.True(t, refs[0].IsPlaceholder)
		assert.False(t, refs[1].IsPlaceholder)
	})

	t.Run("skips string literals and function names", func(t *testing.T) {
		refs := References(`=SUM("A1",TRUE)`)
		assert.Empty(t, refs)
	})
}

func TestRefString(t *testing.T) {
	cases := map[string]Ref{
		"B7":          {Column: "B", Row: 7},
		"$B$7":        {Column: "B", Row: 7, AbsCol: true, AbsRow: true},
		"C{row}":      {Column: "C", IsPlaceholder: true},
		"Input!D4":    {Sheet: "Input", Column: "D", Row: 4},
		"'TCS In'!A1": {Sheet: "TCS In", SheetQuoted: true, Column: "A", Row: 1},
	}
	for want, ref := range cases {
		assert.Equal(t, want, ref.String())
	}
}
