// internal/engine/variables_test.go
package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariablesSubstitute(t *testing.T) {
	vars := NewVariables()
	vars.Set("user", "alice")
	vars.Set("order", "ORD-1")

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"no placeholders", "no placeholders"},
		{"hello {{user}}", "hello alice"},
		{"{{user}}:{{order}}", "alice:ORD-1"},
		{"{{unknown}} stays", "{{unknown}} stays"},
		{"{{user}} and {{unknown}}", "alice and {{unknown}}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, vars.Substitute(tt.in))
	}
}

func TestVariablesSetOverwrites(t *testing.T) {
	vars := NewVariables()
	vars.Set("k", "one")
	vars.Set("k", "two")

	got, ok := vars.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "two", got)

	_, ok = vars.Get("missing")
	assert.False(t, ok)
}
