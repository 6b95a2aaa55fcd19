// Package diagram renders the registered instances and their wiring as a
// Mermaid flowchart, the informational-only diagnostic output described in
// spec §6: one node per instance (hexagon for workers, rectangle for main)
// and one edge per wiring entry labelled with the requirement name, with
// unresolved wiring targets collapsed into a single "missing" sink node.
package diagram

import (
	"fmt"
	"sort"
	"strings"
)

// Instance is the minimal view diagram.Mermaid needs of a plugin instance;
// the root package's PluginInstance satisfies this shape structurally via
// the adapter in orkestra's own diagramview.go wrapper (kept here dependency-
// free so diagram never needs to import the root package).
type Instance struct {
	ID     string
	TypeID string
	Wiring map[string]string
	Worker bool
}

const missingNodeID = "missing"

// Mermaid renders instances as a `flowchart LR` diagram. Iteration is
// sorted by instance id so repeated calls over the same input are
// byte-identical, mirroring the resolver's own determinism guarantee.
func Mermaid(instances map[string]Instance) string {
	ids := make([]string, 0, len(instances))
	for id := range instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("flowchart LR\n")

	needsMissingNode := false
	for _, id := range ids {
		inst := instances[id]
		b.WriteString("    " + nodeDecl(inst))
	}

	for _, id := range ids {
		inst := instances[id]
		reqs := make([]string, 0, len(inst.Wiring))
		for req := range inst.Wiring {
			reqs = append(reqs, req)
		}
		sort.Strings(reqs)

		for _, req := range reqs {
			target := inst.Wiring[req]
			targetID := target
			if _, ok := instances[target]; !ok {
				targetID = missingNodeID
				needsMissingNode = true
			}
			fmt.Fprintf(&b, "    %s -- %s --> %s\n", safeID(id), req, safeID(targetID))
		}
	}

	if needsMissingNode {
		b.WriteString("    " + missingNodeID + "[[missing]]\n")
	}

	return b.String()
}

func nodeDecl(inst Instance) string {
	mode := "main"
	if inst.Worker {
		mode = "worker"
	}
	label := fmt.Sprintf("%s (%s) [%s]", inst.ID, inst.TypeID, mode)
	if inst.Worker {
		return fmt.Sprintf("%s{{%s}}\n", safeID(inst.ID), label)
	}
	return fmt.Sprintf("%s[%s]\n", safeID(inst.ID), label)
}

// safeID strips characters Mermaid node ids can't contain; instance ids in
// this module are expected to already be identifier-safe, this is a last
// line of defense for diagram rendering only.
func safeID(id string) string {
	r := strings.NewReplacer(" ", "_", "-", "_", ".", "_")
	return r.Replace(id)
}
