package handlers

import (
	"context"
	"fmt"

	"github.com/mattjoyce/edgeagent/internal/modules"
	"github.com/mattjoyce/edgeagent/internal/requests"
)

// GetModulesName is the request name answered by GetModules.
const GetModulesName = "getModules"

// StateReader reads recorded module state. modules.Store satisfies it.
type StateReader interface {
	Get(ctx context.Context, name string) (modules.State, error)
}

// ModuleList is the response body of getModules.
type ModuleList struct {
	Modules []modules.State `json:"modules"`
}

// GetModules reports every configured module with its recorded restart state.
type GetModules struct {
	runtime modules.Runtime
	states  StateReader
}

// NewGetModules builds the handler. states may be nil, in which case every
// module reports status unknown.
func NewGetModules(runtime modules.Runtime, states StateReader) *GetModules {
	return &GetModules{runtime: runtime, states: states}
}

func (h *GetModules) Name() string { return GetModulesName }

func (h *GetModules) Handle(ctx context.Context, payload *string) (*string, error) {
	names := h.runtime.Modules()
	out := ModuleList{Modules: make([]modules.State, 0, len(names))}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st := modules.State{Name: name, Status: modules.StatusUnknown}
		if h.states != nil {
			var err error
			st, err = h.states.Get(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("read state of module %s: %w", name, err)
			}
		}
		out.Modules = append(out.Modules, st)
	}
	return marshalPayload(out)
}

var _ requests.Handler = (*GetModules)(nil)
