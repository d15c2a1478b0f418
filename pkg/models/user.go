package models

// User is an authenticated principal. Sessions and credentials live in the
// web server's auth layer; the core only needs identity, roles and groups.
type User struct {
	ID     string   `json:"id"     validate:"required"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles,omitempty"`
	Groups []string `json:"groups,omitempty"`
}

// Role names a reusable permission bundle assigned to users.
type Role struct {
	Name       string     `json:"name"       validate:"required"`
	Permission Permission `json:"permission"`
}
