// api/schemas/schemas.go
package schemas

// Action is the closed set of step action kinds. The dispatcher switches over
// it exhaustively; an unknown value fails the step instead of silently
// no-opping.
type Action string

const (
	ActionGoto          Action = "goto"
	ActionClick         Action = "click"
	ActionDblClick      Action = "dblclick"
	ActionType          Action = "type"
	ActionFill          Action = "fill"
	ActionHover         Action = "hover"
	ActionFocus         Action = "focus"
	ActionCheck         Action = "check"
	ActionUncheck       Action = "uncheck"
	ActionSelect        Action = "select"
	ActionPress         Action = "press"
	ActionScroll        Action = "scroll"
	ActionWaitFor       Action = "wait_for"
	ActionAssertText    Action = "assert_text"
	ActionRunJS         Action = "run_js"
	ActionScreenshot    Action = "screenshot"
	ActionWait          Action = "wait"
	ActionExtract       Action = "extract"
	ActionRunScenario   Action = "run_scenario"
	ActionUploadFile    Action = "upload_file"
	ActionPasteImage    Action = "paste_image"
	ActionSaveAuthState Action = "save_auth_state"
	ActionLoadAuthState Action = "load_auth_state"
	ActionEnsureAuth    Action = "ensure_auth"
)

// Valid reports whether a is a known action kind.
func (a Action) Valid() bool {
	switch a {
	case ActionGoto, ActionClick, ActionDblClick, ActionType, ActionFill,
		ActionHover, ActionFocus, ActionCheck, ActionUncheck, ActionSelect,
		ActionPress, ActionScroll, ActionWaitFor, ActionAssertText,
		ActionRunJS, ActionScreenshot, ActionWait, ActionExtract,
		ActionRunScenario, ActionUploadFile, ActionPasteImage,
		ActionSaveAuthState, ActionLoadAuthState, ActionEnsureAuth:
		return true
	}
	return false
}

// Step is one declarative instruction in a scenario. Steps are owned by the
// scenario definition and read-only to the engine.
type Step struct {
	Name            string `json:"name,omitempty"`
	Action          Action `json:"action"`
	Target          string `json:"target,omitempty"`
	URL             string `json:"url,omitempty"`
	Value           string `json:"value,omitempty"`
	Timeout         int    `json:"timeout,omitempty"` // milliseconds, 0 means the run default
	ContinueOnError bool   `json:"continue_on_error,omitempty"`
	Optional        bool   `json:"optional,omitempty"`
	SaveAs          string `json:"save_as,omitempty"`
	ScenarioID      string `json:"scenario_id,omitempty"`
	FilePath        string `json:"file_path,omitempty"`

	// Auth-related fields (save_auth_state, load_auth_state, ensure_auth).
	StateName        string `json:"state_name,omitempty"`
	CheckURL         string `json:"check_url,omitempty"`
	LoginScenarioID  string `json:"login_scenario_id,omitempty"`
	LoggedInSelector string `json:"logged_in_selector,omitempty"`
	LoginURLPattern  string `json:"login_url_pattern,omitempty"`
}

// ElementSpec maps a symbolic element name to an ordered list of selector
// candidates.
type ElementSpec struct {
	Primary     string   `json:"primary"`
	Fallbacks   []string `json:"fallbacks,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Selectors returns the candidate selectors in declared order.
func (e ElementSpec) Selectors() []string {
	out := make([]string, 0, 1+len(e.Fallbacks))
	if e.Primary != "" {
		out = append(out, e.Primary)
	}
	out = append(out, e.Fallbacks...)
	return out
}

// UIMap is a named table of element specs belonging to a project.
type UIMap struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	ProjectID   string                 `json:"project_id,omitempty"`
	Description string                 `json:"description,omitempty"`
	Elements    map[string]ElementSpec `json:"elements"`
	CreatedAt   string                 `json:"created_at,omitempty"`
	UpdatedAt   string                 `json:"updated_at,omitempty"`
}

// Scenario is an ordered sequence of steps associated with a project.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProjectID   string `json:"project_id"`
	Description string `json:"description,omitempty"`
	UIMapID     string `json:"ui_map_id,omitempty"`
	Steps       []Step `json:"steps"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// Resource is a stored file (image, document) owned by a project and
// addressable through a "resource:<id>" token.
type Resource struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}
