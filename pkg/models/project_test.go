package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testProject() *Project {
	return &Project{
		ID:   1,
		Name: "etl-pipelines",
		Flows: map[string]*Flow{
			"ingest":  {ID: "ingest"},
			"report":  {ID: "report", Locked: true},
			"cleanup": {ID: "cleanup", Locked: true},
		},
		UserGrants: []*Grant{
			{Name: "alice", Permission: NewPermission(PermissionAdmin)},
			{Name: "bob", Permission: NewPermission(PermissionRead)},
		},
		GroupGrants: []*Grant{
			{Name: "data-eng", Permission: NewPermission(PermissionWrite)},
			{Name: "analysts", Permission: NewPermission(PermissionRead)},
		},
		ProxyUsers: []string{"etl-batch"},
	}
}

func TestProject_FlowIDs(t *testing.T) {
	project := testProject()

	assert.Equal(t, []string{"cleanup", "ingest", "report"}, project.FlowIDs())
}

func TestProject_LockedFlowIDs(t *testing.T) {
	project := testProject()

	assert.Equal(t, []string{"cleanup", "report"}, project.LockedFlowIDs())
}

func TestProject_GroupPermission(t *testing.T) {
	project := testProject()

	perm := project.GroupPermission([]string{"data-eng", "analysts", "unknown"})

	assert.True(t, perm.IsSet(PermissionRead))
	assert.True(t, perm.IsSet(PermissionWrite))
	assert.False(t, perm.IsSet(PermissionAdmin))

	assert.True(t, project.GroupPermission(nil).IsEmpty())
}

func TestProject_UsersWithPermission(t *testing.T) {
	project := testProject()

	// Admin grants satisfy every permission check.
	assert.Equal(t, []string{"alice", "bob"}, project.UsersWithPermission(PermissionRead))
	assert.Equal(t, []string{"alice"}, project.UsersWithPermission(PermissionWrite))
}

func TestProject_HasProxyUser(t *testing.T) {
	project := testProject()

	assert.True(t, project.HasProxyUser("etl-batch"))
	assert.False(t, project.HasProxyUser("alice"))
}

func TestFlow_JobTypes(t *testing.T) {
	flow := &Flow{
		ID: "ingest",
		Nodes: []*Node{
			{ID: "a", Type: "command"},
			{ID: "b", Type: "spark"},
			{ID: "c", Type: "command"},
		},
	}

	assert.ElementsMatch(t, []string{"command", "spark"}, flow.JobTypes())
}

func TestFlow_Edges(t *testing.T) {
	flow := &Flow{
		ID:    "ingest",
		Nodes: []*Node{{ID: "a", Type: "command"}, {ID: "b", Type: "command"}},
		Edges: []*Edge{{Source: "a", Target: "b"}},
	}

	assert.Len(t, flow.OutEdges("a"), 1)
	assert.Len(t, flow.InEdges("b"), 1)
	assert.Empty(t, flow.InEdges("a"))
	assert.Nil(t, flow.Node("missing"))
}
