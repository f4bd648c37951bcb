package ladder

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Node is one element of a wire tree. LadderElement nodes carry an element
// type and its arguments, Branch nodes carry two parallel sub-rungs.
type Node struct {
	Type           string   `json:"Type"`
	ElementType    string   `json:"ElementType,omitempty"`
	ComboBoxValues []string `json:"ComboBoxValues,omitempty"`
	Nodes1         []Node   `json:"Nodes1,omitempty"`
	Nodes2         []Node   `json:"Nodes2,omitempty"`
}

// Wire is one rung of the program.
type Wire struct {
	Nodes []Node `json:"Nodes"`
}

// ParseWire unmarshals one wire object. Every scan task parses its own
// copy so no two tasks share node memory.
func ParseWire(raw json.RawMessage) (*Wire, error) {
	var w Wire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("invalid wire: %w", err)
	}
	if w.Nodes == nil {
		return nil, fmt.Errorf("wire without Nodes array")
	}
	return &w, nil
}

func isCoil(n *Node) bool {
	if n.Type != "LadderElement" {
		return false
	}
	switch n.ElementType {
	case "Coil", "OneShotPositiveCoil", "SetCoil", "ResetCoil":
		return true
	}
	return false
}

func arg(n *Node, i int) (string, bool) {
	if i >= len(n.ComboBoxValues) {
		return "", false
	}
	return n.ComboBoxValues[i], true
}

// ScanWire runs one full evaluation of a wire: series evaluation of every
// node, then the trailing coil with the final condition.
func (ev *Evaluator) ScanWire(w *Wire) {
	cond, lastCoil := ev.processNodes(w.Nodes, true)
	if lastCoil != nil {
		ev.processCoil(lastCoil, cond)
	}
}

// processNodes walks a node list, splitting off a trailing coil if the
// last entry is one. Empty lists evaluate to false.
func (ev *Evaluator) processNodes(nodes []Node, cond bool) (bool, *Node) {
	if len(nodes) == 0 {
		return false, nil
	}
	var lastCoil *Node
	count := len(nodes)
	if isCoil(&nodes[count-1]) {
		lastCoil = &nodes[count-1]
		count--
	}
	for i := 0; i < count; i++ {
		cond = ev.processNode(&nodes[i], cond)
	}
	return cond, lastCoil
}

// processNode evaluates a single non-trailing node and returns the updated
// rung condition.
func (ev *Evaluator) processNode(n *Node, cond bool) bool {
	switch n.Type {
	case "LadderElement":
		return ev.processElement(n, cond)
	case "Branch":
		if n.Nodes1 == nil || n.Nodes2 == nil {
			ev.logger.Error("branch missing Nodes1 or Nodes2")
			return false
		}
		c1, coil1 := ev.processNodes(n.Nodes1, true)
		c2, coil2 := ev.processNodes(n.Nodes2, true)
		cond = cond && (c1 || c2)
		// Coils inside a branch are tolerated but not expected
		if coil1 != nil && c1 {
			ev.logger.Warn("unexpected coil in Nodes1")
			ev.processCoil(coil1, c1)
		}
		if coil2 != nil && c2 {
			ev.logger.Warn("unexpected coil in Nodes2")
			ev.processCoil(coil2, c2)
		}
		return cond
	}
	ev.logger.Warn("unknown node type", zap.String("type", n.Type))
	return false
}

func (ev *Evaluator) processElement(n *Node, cond bool) bool {
	a1, ok1 := arg(n, 0)
	a2, ok2 := arg(n, 1)
	a3, ok3 := arg(n, 2)

	switch n.ElementType {
	case "NOContact":
		if ok1 {
			result := ev.NOContact(a1)
			return cond && result
		}
	case "NCContact":
		if ok1 {
			result := ev.NCContact(a1)
			return cond && result
		}
	case "GreaterCompare":
		if ok1 && ok2 {
			result := ev.Greater(a1, a2)
			return cond && result
		}
	case "LessCompare":
		if ok1 && ok2 {
			result := ev.Less(a1, a2)
			return cond && result
		}
	case "GreaterOrEqualCompare":
		if ok1 && ok2 {
			result := ev.GreaterOrEqual(a1, a2)
			return cond && result
		}
	case "LessOrEqualCompare":
		if ok1 && ok2 {
			result := ev.LessOrEqual(a1, a2)
			return cond && result
		}
	case "EqualCompare":
		if ok1 && ok2 {
			result := ev.Equal(a1, a2)
			return cond && result
		}
	case "NotEqualCompare":
		if ok1 && ok2 {
			result := ev.NotEqual(a1, a2)
			return cond && result
		}
	case "AddMath":
		if ok1 && ok2 && ok3 {
			ev.Add(a1, a2, a3, cond)
		}
		return cond
	case "SubtractMath":
		if ok1 && ok2 && ok3 {
			ev.Subtract(a1, a2, a3, cond)
		}
		return cond
	case "MultiplyMath":
		if ok1 && ok2 && ok3 {
			ev.Multiply(a1, a2, a3, cond)
		}
		return cond
	case "DivideMath":
		if ok1 && ok2 && ok3 {
			ev.Divide(a1, a2, a3, cond)
		}
		return cond
	case "MoveMath":
		if ok1 && ok2 {
			ev.Move(a1, a2, cond)
		}
		return cond
	case "CountUp":
		if ok1 {
			ev.CountUp(a1, cond)
		}
		return cond
	case "CountDown":
		if ok1 {
			ev.CountDown(a1, cond)
		}
		return cond
	case "OnDelayTimer":
		if ok1 {
			result := ev.TimerOn(a1, cond)
			return cond && result
		}
	case "OffDelayTimer":
		if ok1 {
			// Replaces instead of ANDs, an off-delay holds its output
			// regardless of the elements before it
			return ev.TimerOff(a1, cond)
		}
	case "Reset":
		if ok1 {
			ev.Reset(a1, cond)
		}
		return cond
	case "Coil", "OneShotPositiveCoil", "SetCoil", "ResetCoil":
		// Only a trailing coil sinks the rung, mid-rung coils do nothing
		return cond
	default:
		ev.logger.Warn("unknown element type", zap.String("element", n.ElementType))
	}
	return cond
}

func (ev *Evaluator) processCoil(n *Node, cond bool) {
	name, ok := arg(n, 0)
	if !ok {
		ev.logger.Error("coil missing variable argument")
		return
	}
	switch n.ElementType {
	case "Coil":
		ev.Coil(name, cond)
	case "OneShotPositiveCoil":
		ev.OneShotPositiveCoil(name, cond)
	case "SetCoil":
		ev.SetCoil(name, cond)
	case "ResetCoil":
		ev.ResetCoil(name, cond)
	}
}

// References collects every variable name a node list mentions so the
// apply path can reject programs that point at undefined variables.
func References(nodes []Node) []string {
	var out []string
	for i := range nodes {
		n := &nodes[i]
		out = append(out, n.ComboBoxValues...)
		out = append(out, References(n.Nodes1)...)
		out = append(out, References(n.Nodes2)...)
	}
	return out
}
