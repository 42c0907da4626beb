// api/schemas/schemas_test.go
package schemas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActionValid(t *testing.T) {
	valid := []Action{
		ActionGoto, ActionClick, ActionDblClick, ActionType, ActionFill,
		ActionHover, ActionFocus, ActionCheck, ActionUncheck, ActionSelect,
		ActionPress, ActionScroll, ActionWaitFor, ActionAssertText,
		ActionRunJS, ActionScreenshot, ActionWait, ActionExtract,
		ActionRunScenario, ActionUploadFile, ActionPasteImage,
		ActionSaveAuthState, ActionLoadAuthState, ActionEnsureAuth,
	}
	for _, a := range valid {
		assert.True(t, a.Valid(), string(a))
	}

	assert.False(t, Action("").Valid())
	assert.False(t, Action("navigate").Valid())
	assert.False(t, Action("CLICK").Valid())
}

func TestElementSpecSelectors(t *testing.T) {
	spec := ElementSpec{Primary: "#a", Fallbacks: []string{"#b", "#c"}}
	assert.Equal(t, []string{"#a", "#b", "#c"}, spec.Selectors())

	// A spec with only fallbacks still yields candidates in order.
	assert.Equal(t, []string{"#x"}, ElementSpec{Fallbacks: []string{"#x"}}.Selectors())
	assert.Empty(t, ElementSpec{}.Selectors())
}

func TestPathString(t *testing.T) {
	tests := []struct {
		path []int
		want string
	}{
		{[]int{0}, "00"},
		{[]int{3}, "03"},
		{[]int{3, 1}, "03-01"},
		{[]int{12, 0, 7}, "12-00-07"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PathString(tt.path))
	}
}

func TestTimestampFormat(t *testing.T) {
	ts := Timestamp(time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC))
	assert.Equal(t, "2025-06-01T12:30:45.123456789Z", ts)
}
