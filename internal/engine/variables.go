// internal/engine/variables.go
package engine

import (
	"regexp"
	"sync"
)

// varPattern matches {{name}} placeholders. Names are word characters only.
var varPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Variables holds named string values produced by extract steps. Scoped to
// one run: created empty at run start, discarded at run end.
type Variables struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewVariables creates an empty variable store.
func NewVariables() *Variables {
	return &Variables{values: make(map[string]string)}
}

// Set stores a value, overwriting any previous one under the same name.
func (v *Variables) Set(name, value string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.values[name] = value
}

// Get returns the value for name and whether it exists.
func (v *Variables) Get(name string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.values[name]
	return val, ok
}

// Substitute replaces every {{name}} occurrence with the stored value.
// Unresolved names are left untouched so typos stay visible in output
// instead of being silently erased.
func (v *Variables) Substitute(text string) string {
	if text == "" || !varPattern.MatchString(text) {
		return text
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	return varPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		if val, ok := v.values[name]; ok {
			return val
		}
		return match
	})
}
