// internal/engine/resolver.go
package engine

import (
	"strings"

	"github.com/mjbeckett/stepflow/api/schemas"
)

// ResolveSelectors turns a step's symbolic target into an ordered candidate
// selector list.
//
// A target containing "." that does not start with "." (which would be a CSS
// class selector) is first interpreted as "<uiMapName>.<elementName>" against
// the project's named UI maps. If that yields nothing, the target is tried as
// a key into the legacy single UI map, and finally used verbatim as a raw
// selector. An empty target resolves to nothing; absence of selectors is a
// condition for the caller to check, not an error.
func ResolveSelectors(
	target string,
	uiMap map[string]schemas.ElementSpec,
	uiMapsByName map[string]map[string]schemas.ElementSpec,
) []string {
	if target == "" {
		return nil
	}

	var selectors []string
	if strings.Contains(target, ".") && !strings.HasPrefix(target, ".") {
		mapName, elementName, _ := strings.Cut(target, ".")
		if elements, ok := uiMapsByName[mapName]; ok {
			if spec, ok := elements[elementName]; ok {
				selectors = append(selectors, spec.Selectors()...)
			}
		}
	}

	if len(selectors) == 0 {
		if spec, ok := uiMap[target]; ok {
			selectors = append(selectors, spec.Selectors()...)
		} else {
			selectors = append(selectors, target)
		}
	}
	return selectors
}
