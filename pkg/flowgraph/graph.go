package flowgraph

import (
	"sort"

	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/persistence"
)

// NodeDescription is the query view of one node: its identity, dependency
// edges and, for embedded flows, the nested child description.
type NodeDescription struct {
	ID             string   `json:"id"`
	Type           string   `json:"type"`
	Level          int      `json:"level"`
	Condition      string   `json:"condition,omitempty"`
	EmbeddedFlowID string   `json:"embedded_flow_id,omitempty"`
	In             []string `json:"in,omitempty"`
	Out            []string `json:"out,omitempty"`

	Flow *FlowDescription `json:"flow,omitempty"`
}

// FlowDescription is the query view of one flow.
type FlowDescription struct {
	FlowID    string             `json:"flow_id"`
	Locked    bool               `json:"locked"`
	Condition string             `json:"condition,omitempty"`
	Nodes     []*NodeDescription `json:"nodes"`
}

// Describe returns the flat description of a flow, nodes sorted by ascending
// level with ties broken by id. Edge lists are sorted.
func Describe(flow *models.Flow) *FlowDescription {
	description := &FlowDescription{
		FlowID:    flow.ID,
		Locked:    flow.Locked,
		Condition: flow.Condition,
		Nodes:     make([]*NodeDescription, 0, len(flow.Nodes)),
	}

	for _, node := range flow.Nodes {
		description.Nodes = append(description.Nodes, describeNode(flow, node))
	}

	sort.SliceStable(description.Nodes, func(i, j int) bool {
		a, b := description.Nodes[i], description.Nodes[j]
		if a.Level != b.Level {
			return a.Level < b.Level
		}

		return a.ID < b.ID
	})

	return description
}

func describeNode(flow *models.Flow, node *models.Node) *NodeDescription {
	description := &NodeDescription{
		ID:             node.ID,
		Type:           node.Type,
		Level:          node.Level,
		Condition:      node.Condition,
		EmbeddedFlowID: node.EmbeddedFlowID,
	}

	for _, edge := range flow.InEdges(node.ID) {
		description.In = append(description.In, edge.Source)
	}

	for _, edge := range flow.OutEdges(node.ID) {
		description.Out = append(description.Out, edge.Target)
	}

	sort.Strings(description.In)
	sort.Strings(description.Out)

	return description
}

// DescribeDeep returns the description of a flow with every embedded flow
// recursively expanded under its invoking node. Embeddings must form a DAG
// of flows; re-entering a flow already on the descent path fails.
func DescribeDeep(project *models.Project, flowID string) (*FlowDescription, error) {
	return describeDeep(project, flowID, map[string]struct{}{})
}

func describeDeep(project *models.Project, flowID string, visited map[string]struct{}) (*FlowDescription, error) {
	if _, seen := visited[flowID]; seen {
		return nil, ErrEmbeddedFlowCycle
	}

	flow := project.Flow(flowID)
	if flow == nil {
		return nil, persistence.ErrFlowNotFound
	}

	visited[flowID] = struct{}{}
	defer delete(visited, flowID)

	description := Describe(flow)

	for _, node := range description.Nodes {
		if node.EmbeddedFlowID == "" {
			continue
		}

		child, err := describeDeep(project, node.EmbeddedFlowID, visited)
		if err != nil {
			return nil, err
		}

		node.Flow = child
	}

	return description, nil
}

// ComputeLevels assigns each node its longest-path distance from a flow
// root: 0 for nodes without predecessors, otherwise one more than the
// deepest direct predecessor. Fails on self-edges and cycles.
func ComputeLevels(flow *models.Flow) error {
	inDegree := make(map[string]int, len(flow.Nodes))
	successors := make(map[string][]string, len(flow.Nodes))
	levels := make(map[string]int, len(flow.Nodes))

	for _, node := range flow.Nodes {
		inDegree[node.ID] = 0
	}

	for _, edge := range flow.Edges {
		if edge.Source == edge.Target {
			return ErrSelfDependency
		}

		inDegree[edge.Target]++
		successors[edge.Source] = append(successors[edge.Source], edge.Target)
	}

	// Kahn's algorithm, propagating the longest path instead of just order.
	var queue []string

	for _, node := range flow.Nodes {
		if inDegree[node.ID] == 0 {
			queue = append(queue, node.ID)
			levels[node.ID] = 0
		}
	}

	processed := 0

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++

		for _, successor := range successors[id] {
			if levels[id]+1 > levels[successor] {
				levels[successor] = levels[id] + 1
			}

			inDegree[successor]--
			if inDegree[successor] == 0 {
				queue = append(queue, successor)
			}
		}
	}

	if processed != len(flow.Nodes) {
		return ErrCyclicDependency
	}

	for _, node := range flow.Nodes {
		node.Level = levels[node.ID]
	}

	return nil
}
