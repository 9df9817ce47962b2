package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindString, false},
		{"string", KindString, false},
		{" Integer ", KindInteger, false},
		{"FLOAT", KindFloat, false},
		{"boolean", KindBoolean, false},
		{"date", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKind_UnmarshalText(t *testing.T) {
	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("integer")))
	assert.Equal(t, KindInteger, k)
	assert.Error(t, k.UnmarshalText([]byte("decimal")))
}

func TestKind_Convert(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		raw     string
		want    string
		wantErr bool
	}{
		{"string", KindString, "North", `"North"`, false},
		{"string with quotes", KindString, `He said "hi"`, `"He said ""hi"""`, false},
		{"empty string", KindString, "", `""`, false},
		{"integer", KindInteger, " 42 ", "42", false},
		{"negative integer", KindInteger, "-7", "-7", false},
		{"integer leading zeros", KindInteger, "007", "7", false},
		{"integer rejects float", KindInteger, "4.2", "", true},
		{"float", KindFloat, "3.50", "3.5", false},
		{"float exponent", KindFloat, "1e3", "1000", false},
		{"float rejects nan", KindFloat, "NaN", "", true},
		{"float rejects inf", KindFloat, "+Inf", "", true},
		{"bool yes", KindBoolean, "Yes", "true", false},
		{"bool zero", KindBoolean, "0", "false", false},
		{"bool invalid", KindBoolean, "maybe", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.kind.Convert(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		ok    bool
		value Literal
		start int
		end   int
	}{
		{"quoted", `"North" meta [IsParameterQuery=true]`, true, Literal{Text: "North", Quoted: true}, 0, 7},
		{"escaped quotes", `"a""b" meta [x=1]`, true, Literal{Text: `a"b`, Quoted: true}, 0, 6},
		{"number", `  12.5 meta [IsParameterQuery=true]`, true, Literal{Text: "12.5"}, 2, 6},
		{"boolean", "true\tmeta[IsParameterQuery=true]", true, Literal{Text: "true"}, 0, 4},
		{"no meta", `"North"`, false, Literal{}, 0, 0},
		{"let expression", "let\n Source = 1\nin Source", false, Literal{}, 0, 0},
		{"unterminated", `"North meta [x]`, false, Literal{}, 0, 0},
		{"blank", "   ", false, Literal{}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := parseLiteral(tt.expr)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.value, d.value)
			assert.Equal(t, tt.start, d.start)
			assert.Equal(t, tt.end, d.end)
		})
	}
}

func TestLiteral_String(t *testing.T) {
	tests := []struct {
		name string
		lit  Literal
		want string
	}{
		{"bare", Literal{Text: "12"}, "12"},
		{"plain", Literal{Text: "North", Quoted: true}, `"North"`},
		{"quotes", Literal{Text: `O"Brien`, Quoted: true}, `"O""Brien"`},
		{"line feed", Literal{Text: "Fin\nance", Quoted: true}, `"Fin#(lf)ance"`},
		{"crlf", Literal{Text: "a\r\nb", Quoted: true}, `"a#(cr,lf)b"`},
		{"carriage return", Literal{Text: "a\rb", Quoted: true}, `"a#(cr)b"`},
		{"tab", Literal{Text: "a\tb", Quoted: true}, `"a#(tab)b"`},
		{"other control", Literal{Text: "a\x07b", Quoted: true}, `"a#(0007)b"`},
		{"hash paren", Literal{Text: "#(lf)", Quoted: true}, `"#(#)(lf)"`},
		{"lone hash", Literal{Text: "#1", Quoted: true}, `"#1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.lit.String()
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "\n")

			d, ok := parseLiteral(got + " meta [IsParameterQuery=true]")
			require.True(t, ok)
			assert.Equal(t, tt.lit, d.value)
			assert.Equal(t, len(got), d.end)
		})
	}
}

func TestUnescapeText(t *testing.T) {
	assert.Equal(t, "a\r\nb", unescapeText("a#(cr,lf)b"))
	assert.Equal(t, "é", unescapeText("#(00E9)"))
	assert.Equal(t, "#(bogus)", unescapeText("#(bogus)"))
	assert.Equal(t, "#(", unescapeText("#("))
}

func TestHasMarker(t *testing.T) {
	assert.True(t, hasMarker(` meta [IsParameterQuery=true, Type="Text"]`))
	assert.True(t, hasMarker(` meta [isparameterquery = TRUE]`))
	assert.False(t, hasMarker(` meta [IsParameterQuery=false]`))
	assert.False(t, hasMarker(` meta [IsParameterQueryRequired=true]`))
}
