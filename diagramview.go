package orkestra

import "github.com/deckhand/orkestra/diagram"

// toDiagramInstances adapts this package's PluginInstance map to the
// dependency-free shape package diagram renders, keeping diagram itself
// free of any import back onto the root package.
func toDiagramInstances(instances map[string]PluginInstance) map[string]diagram.Instance {
	out := make(map[string]diagram.Instance, len(instances))
	for id, inst := range instances {
		out[id] = diagram.Instance{
			ID:     inst.ID,
			TypeID: inst.TypeID,
			Wiring: inst.Wiring,
			Worker: inst.Mode == ModeWorker,
		}
	}
	return out
}
