package orkestra

// Query is a diagnostic view over registered instances, adapted from the
// teacher module's ServiceQuery filter-by-predicate shape (query.go):
// filter by mode, by type id, or by whether an instance's service has
// appeared in the registry yet. Non-normative: it never mutates engine
// state (spec §6 frames diagnostics as "informational only").
type Query struct {
	// Mode, if non-nil, restricts results to instances in that Mode.
	Mode *Mode

	// TypeID, if non-empty, restricts results to instances of that type.
	TypeID string

	// Started, if non-nil, restricts results by whether the instance's
	// service has been published into the registry.
	Started *bool
}

// Run evaluates q against o's current instance set, in registration order.
func (o *Orchestrator) Run(q Query) []string {
	var out []string
	for _, id := range o.instStore.Order() {
		o.mu.Lock()
		inst, ok := o.instances[id]
		o.mu.Unlock()
		if !ok {
			continue
		}
		if q.Mode != nil && inst.Mode != *q.Mode {
			continue
		}
		if q.TypeID != "" && inst.TypeID != q.TypeID {
			continue
		}
		if q.Started != nil && o.services.Has(id) != *q.Started {
			continue
		}
		out = append(out, id)
	}
	return out
}

// ByMode returns every instance id in mode, in registration order.
func (o *Orchestrator) ByMode(mode Mode) []string {
	return o.Run(Query{Mode: &mode})
}

// ByType returns every instance id of typeID, in registration order.
func (o *Orchestrator) ByType(typeID string) []string {
	return o.Run(Query{TypeID: typeID})
}

// Started returns every instance id with a currently registered service.
func (o *Orchestrator) Started() []string {
	yes := true
	return o.Run(Query{Started: &yes})
}

// NotStarted returns every instance id without a currently registered
// service.
func (o *Orchestrator) NotStarted() []string {
	no := false
	return o.Run(Query{Started: &no})
}
