package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text unchanged", "drink more water", "drink more water"},
		{"script tag", "<script>", "&lt;script&gt;"},
		{"closing tag slash", "</b>", "&lt;&#x2F;b&gt;"},
		{"double quote", `say "hi"`, "say &quot;hi&quot;"},
		{"single quote", "it's", "it&#x27;s"},
		{"backslash untouched", `C:\path`, `C:\path`},
		{"ampersand untouched", "salt & pepper", "salt & pepper"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_ScriptHasNoUnsafeCharacters(t *testing.T) {
	got := Sanitize(`<script>alert('x')</script>"`)

	for _, c := range []string{"<", ">", `"`, "'", "/"} {
		assert.False(t, strings.Contains(got, c), "output %q still contains %q", got, c)
	}
}
