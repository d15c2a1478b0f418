package permissions

import (
	"sort"
	"sync"

	"github.com/ImpactInc/azkaban/pkg/models"
)

// Directory is the external user-directory collaborator. It answers whether
// principals exist and which permission bundle a role carries.
type Directory interface {
	ValidateUser(name string) bool
	ValidateGroup(name string) bool

	// ValidateProxyUser reports whether the acting user may register the
	// named identity as a proxy user.
	ValidateProxyUser(name string, actingUser *models.User) bool

	Role(name string) (*models.Role, bool)
}

// StaticDirectory is a fixed in-memory directory, loaded once at startup.
// Production deployments plug in an LDAP-backed implementation instead.
type StaticDirectory struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	groups  map[string]struct{}
	roles   map[string]*models.Role
	proxies map[string][]string // proxy name -> user ids allowed to register it
}

// NewStaticDirectory creates an empty static directory.
func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		users:   make(map[string]*models.User),
		groups:  make(map[string]struct{}),
		roles:   make(map[string]*models.Role),
		proxies: make(map[string][]string),
	}
}

// AddUser registers a user.
func (d *StaticDirectory) AddUser(user *models.User) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.users[user.ID] = user
}

// AddGroup registers a group name.
func (d *StaticDirectory) AddGroup(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.groups[name] = struct{}{}
}

// AddRole registers a role.
func (d *StaticDirectory) AddRole(role *models.Role) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.roles[role.Name] = role
}

// AllowProxy permits the given user to register name as a proxy user.
func (d *StaticDirectory) AllowProxy(name, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.proxies[name] = append(d.proxies[name], userID)
	sort.Strings(d.proxies[name])
}

func (d *StaticDirectory) ValidateUser(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.users[name]

	return ok
}

func (d *StaticDirectory) ValidateGroup(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.groups[name]

	return ok
}

func (d *StaticDirectory) ValidateProxyUser(name string, actingUser *models.User) bool {
	if actingUser == nil {
		return false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, userID := range d.proxies[name] {
		if userID == actingUser.ID {
			return true
		}
	}

	return false
}

func (d *StaticDirectory) Role(name string) (*models.Role, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	role, ok := d.roles[name]

	return role, ok
}
