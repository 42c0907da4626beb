// api/schemas/authstate.go
package schemas

// Cookie is a browser cookie as persisted in an auth state file. The field
// set matches the storage-state JSON produced by the original tooling so
// existing state files remain loadable.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Expires  float64 `json:"expires,omitempty"` // unix seconds, -1 for session cookies
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// LocalStorageItem is one key/value pair of an origin's local storage.
type LocalStorageItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OriginState holds the local storage captured for one origin.
type OriginState struct {
	Origin       string             `json:"origin"`
	LocalStorage []LocalStorageItem `json:"localStorage"`
}

// AuthState is a serialized browser session: cookies plus per-origin local
// storage. One file per (project_id, state_name); created or overwritten by
// save_auth_state and the login branch of ensure_auth, never auto-deleted.
type AuthState struct {
	Cookies []Cookie      `json:"cookies"`
	Origins []OriginState `json:"origins"`
}
