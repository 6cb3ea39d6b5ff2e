// Package scheduler implements the calculation scheduler of §4.5: an
// iterative three-colour depth-first topological sort over the dependency
// graph, with a back-edge reported as a circular dependency naming the
// actual cycle path rather than the full DFS history (§9 design notes).
package scheduler

import (
	"github.com/forgelang/forge/analyzer"
	"github.com/forgelang/forge/forgeerr"
	"github.com/forgelang/forge/model"
)

type color int

const (
	white color = iota // unvisited
	gray               // on-stack
	black              // done
)

// Order returns a valid evaluation order over every cell in reg: terminal
// cells (no formula, per §4.5: "External cells... are trusted as leaves")
// are included so the evaluator can seed its cache uniformly, scheduled
// before anything that reads them.
//
// Ties among ready nodes break by document-order of definition (§4.5): the
// Registry already assigns CellIDs in document order, and the DFS visits a
// node's dependencies in the order the analyser emitted them, so iterating
// reg.Cells() in ID order for the initial-node selection yields a stable,
// reproducible order.
func Order(reg *model.Registry, g *analyzer.Graph) ([]model.CellID, error) {
	n := reg.Len()
	colors := make([]color, n)
	var order []model.CellID

	// frame is one activation record of the DFS, kept on an explicit stack
	// so the traversal never recurses on the Go call stack (§4.5: "iterative
	// depth-first traversal").
	type frame struct {
		id     model.CellID
		edgeIx int
	}

	for _, root := range reg.Cells() {
		if colors[root.ID] != white {
			continue
		}

		var callStack []frame
		colors[root.ID] = gray
		callStack = append(callStack, frame{id: root.ID})

		for len(callStack) > 0 {
			top := &callStack[len(callStack)-1]
			edges := g.Edges[top.id]

			if top.edgeIx >= len(edges) {
				colors[top.id] = black
				order = append(order, top.id)
				callStack = callStack[:len(callStack)-1]
				continue
			}

			dep := edges[top.edgeIx]
			top.edgeIx++

			switch colors[dep] {
			case white:
				colors[dep] = gray
				callStack = append(callStack, frame{id: dep})
			case gray:
				onStack := make([]model.CellID, len(callStack))
				for i, f := range callStack {
					onStack[i] = f.id
				}
				return nil, cycleError(reg, onStack, dep)
			case black:
				// already scheduled, nothing to do
			}
		}
	}
	return order, nil
}

// cycleError builds a Cycle error naming only the back-edge path: the
// portion of the on-stack prefix from the first occurrence of the
// repeated node to the top, not the entire DFS history.
func cycleError(reg *model.Registry, stack []model.CellID, repeated model.CellID) error {
	start := 0
	for i, id := range stack {
		if id == repeated {
			start = i
			break
		}
	}
	cycle := stack[start:]
	names := make([]string, 0, len(cycle)+1)
	for _, id := range cycle {
		names = append(names, reg.Cell(id).Addr.String())
	}
	names = append(names, reg.Cell(repeated).Addr.String())
	return forgeerr.Cycle(names)
}
