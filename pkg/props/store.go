package props

import (
	"context"

	"github.com/ImpactInc/azkaban/pkg/models"
	"github.com/ImpactInc/azkaban/pkg/persistence"
)

// FlowStore reads property values straight from the installed flow model,
// where the archive loader placed them.
type FlowStore struct{}

func NewFlowStore() *FlowStore {
	return &FlowStore{}
}

func (s *FlowStore) Properties(_ context.Context, _ *models.Project, flow *models.Flow, source string) (map[string]string, error) {
	entry := flow.FlowProps(source)
	if entry == nil {
		return nil, persistence.ErrPropsNotFound
	}

	return entry.Properties, nil
}
