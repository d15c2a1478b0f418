// Package models defines the core domain models for versioned flow management.
package models

// JobTypeFlow marks a node that invokes an embedded sub-flow instead of a job.
const JobTypeFlow = "flow"

// Node is a single job (or embedded sub-flow invocation) within a flow.
type Node struct {
	ID   string `json:"id"   validate:"required"`
	Type string `json:"type" validate:"required"`

	// EmbeddedFlowID references a child flow when Type is JobTypeFlow.
	EmbeddedFlowID string `json:"embedded_flow_id,omitempty"`

	// Level is the longest dependency-chain distance from a flow root.
	Level int `json:"level"`

	// JobSource is the definition file this job was compiled from.
	JobSource string `json:"job_source,omitempty"`

	// PropsSource is the property source the job's configuration starts at.
	PropsSource string `json:"props_source,omitempty"`

	// Overrides are per-job values set through the API after install. They
	// win over every source in the inheritance chain.
	Overrides map[string]string `json:"overrides,omitempty"`

	Condition string `json:"condition,omitempty"`
}

// Edge declares that Target depends on Source completing first.
type Edge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// FlowProps is one node in a flow's property-inheritance chain. An empty
// InheritedSource marks the root of the chain.
type FlowProps struct {
	Source          string            `json:"source" validate:"required"`
	InheritedSource string            `json:"inherited_source,omitempty"`
	Properties      map[string]string `json:"properties,omitempty"`
}

// Flow is a named DAG of job nodes forming one executable workflow.
// Flow identity is unique within its owning project.
type Flow struct {
	ID    string       `json:"id" validate:"required"`
	Nodes []*Node      `json:"nodes"`
	Edges []*Edge      `json:"edges"`
	Props []*FlowProps `json:"props,omitempty"`

	// Embedded marks a flow that only exists as a sub-flow of another.
	Embedded  bool   `json:"embedded,omitempty"`
	Condition string `json:"condition,omitempty"`

	Locked           bool   `json:"locked"`
	LockErrorMessage string `json:"lock_error_message,omitempty"`
}

// Node returns the node with the given id, or nil.
func (f *Flow) Node(id string) *Node {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// InEdges returns the edges whose target is the given node.
func (f *Flow) InEdges(nodeID string) []*Edge {
	var in []*Edge

	for _, edge := range f.Edges {
		if edge.Target == nodeID {
			in = append(in, edge)
		}
	}

	return in
}

// OutEdges returns the edges whose source is the given node.
func (f *Flow) OutEdges(nodeID string) []*Edge {
	var out []*Edge

	for _, edge := range f.Edges {
		if edge.Source == nodeID {
			out = append(out, edge)
		}
	}

	return out
}

// FlowProps returns the property source entry with the given source id, or nil.
func (f *Flow) FlowProps(source string) *FlowProps {
	for _, props := range f.Props {
		if props.Source == source {
			return props
		}
	}

	return nil
}

// JobTypes returns the distinct node job types of the flow, unsorted.
func (f *Flow) JobTypes() []string {
	seen := make(map[string]struct{}, len(f.Nodes))
	types := make([]string, 0, len(f.Nodes))

	for _, node := range f.Nodes {
		if _, ok := seen[node.Type]; ok {
			continue
		}

		seen[node.Type] = struct{}{}
		types = append(types, node.Type)
	}

	return types
}
