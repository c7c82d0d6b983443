package workflow

import (
	"errors"
	"fmt"

	"github.com/dshills/nodeflow/pkg/value"
)

// NodeType is the closed set of node kinds a graph may contain.
type NodeType string

// Control flow
const (
	TypeEntry            NodeType = "Entry"
	TypeBranch           NodeType = "Branch"
	TypeSequence         NodeType = "Sequence"
	TypeGate             NodeType = "Gate"
	TypeForLoop          NodeType = "ForLoop"
	TypeWhileLoop        NodeType = "WhileLoop"
	TypeForLoopAsync     NodeType = "ForLoopAsync"
	TypeWaitForCondition NodeType = "WaitForCondition"
	TypeDelay            NodeType = "Delay"
	TypeNotes            NodeType = "Notes"
)

// Variables
const (
	TypeGetVariable NodeType = "GetVariable"
	TypeSetVariable NodeType = "SetVariable"
)

// Math
const (
	TypeAdd      NodeType = "Add"
	TypeSubtract NodeType = "Subtract"
	TypeMultiply NodeType = "Multiply"
	TypeDivide   NodeType = "Divide"
	TypeModulo   NodeType = "Modulo"
	TypePower    NodeType = "Power"
	TypeAbs      NodeType = "Abs"
	TypeMin      NodeType = "Min"
	TypeMax      NodeType = "Max"
	TypeClamp    NodeType = "Clamp"
	TypeRandom   NodeType = "Random"
	TypeConstant NodeType = "Constant"
)

// Comparison and logic
const (
	TypeEquals             NodeType = "Equals"
	TypeNotEquals          NodeType = "NotEquals"
	TypeGreaterThan        NodeType = "GreaterThan"
	TypeGreaterThanOrEqual NodeType = "GreaterThanOrEqual"
	TypeLessThan           NodeType = "LessThan"
	TypeLessThanOrEqual    NodeType = "LessThanOrEqual"
	TypeAnd                NodeType = "And"
	TypeOr                 NodeType = "Or"
	TypeNot                NodeType = "Not"
	TypeXor                NodeType = "Xor"
)

// Strings
const (
	TypeConcat        NodeType = "Concat"
	TypeSplit         NodeType = "Split"
	TypeLength        NodeType = "Length"
	TypeContains      NodeType = "Contains"
	TypeReplace       NodeType = "Replace"
	TypeFormat        NodeType = "Format"
	TypeStringJoin    NodeType = "StringJoin"
	TypeStringBetween NodeType = "StringBetween"
	TypeStringTrim    NodeType = "StringTrim"
	TypeExtractAfter  NodeType = "ExtractAfter"
	TypeExtractUntil  NodeType = "ExtractUntil"
)

// Conversion and time
const (
	TypeToInteger    NodeType = "ToInteger"
	TypeToFloat      NodeType = "ToFloat"
	TypeToString     NodeType = "ToString"
	TypeGetTimestamp NodeType = "GetTimestamp"
)

// Arrays and JSON
const (
	TypeArrayCreate   NodeType = "ArrayCreate"
	TypeArrayGet      NodeType = "ArrayGet"
	TypeArrayLength   NodeType = "ArrayLength"
	TypeArrayPush     NodeType = "ArrayPush"
	TypeArrayPop      NodeType = "ArrayPop"
	TypeArraySet      NodeType = "ArraySet"
	TypeJSONParse     NodeType = "JSONParse"
	TypeJSONStringify NodeType = "JSONStringify"
	TypeJSONQuery     NodeType = "JSONQuery"
	TypeExpression    NodeType = "Expression"
)

// I/O and system
const (
	TypePrint             NodeType = "Print"
	TypeReadInput         NodeType = "ReadInput"
	TypeFileRead          NodeType = "FileRead"
	TypeFileWrite         NodeType = "FileWrite"
	TypeRunCommand        NodeType = "RunCommand"
	TypeLaunchApp         NodeType = "LaunchApp"
	TypeCloseApp          NodeType = "CloseApp"
	TypeFocusWindow       NodeType = "FocusWindow"
	TypeGetWindowPosition NodeType = "GetWindowPosition"
	TypeSetWindowPosition NodeType = "SetWindowPosition"
	TypeHTTPRequest       NodeType = "HTTPRequest"
)

// Input automation
const (
	TypeClick       NodeType = "Click"
	TypeDoubleClick NodeType = "DoubleClick"
	TypeRightClick  NodeType = "RightClick"
	TypeMouseMove   NodeType = "MouseMove"
	TypeMouseDown   NodeType = "MouseDown"
	TypeMouseUp     NodeType = "MouseUp"
	TypeScroll      NodeType = "Scroll"
	TypeKeyPress    NodeType = "KeyPress"
	TypeKeyDown     NodeType = "KeyDown"
	TypeKeyUp       NodeType = "KeyUp"
	TypeTypeText    NodeType = "TypeText"
	TypeTypeString  NodeType = "TypeString"
	TypeHotKey      NodeType = "HotKey"
)

// Screen and image recognition
const (
	TypeScreenCapture   NodeType = "ScreenCapture"
	TypeSaveScreenshot  NodeType = "SaveScreenshot"
	TypeRegionCapture   NodeType = "RegionCapture"
	TypeGetPixelColor   NodeType = "GetPixelColor"
	TypeFindColor       NodeType = "FindColor"
	TypeWaitForColor    NodeType = "WaitForColor"
	TypeFindImage       NodeType = "FindImage"
	TypeWaitForImage    NodeType = "WaitForImage"
	TypeImageSimilarity NodeType = "ImageSimilarity"
)

// Position is the editor placement of a node. The engine ignores it.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a single vertex of a graph.
type Node struct {
	ID          string
	Type        NodeType
	Name        string // variable bound by GetVariable and SetVariable
	DisplayName string
	Position    Position
	Disabled    bool
	// Inputs holds literal values for unconnected input ports.
	Inputs map[string]value.Value
	Note   string
}

// NewNode creates an enabled node of the given type with a generated ID.
func NewNode(t NodeType) *Node {
	return &Node{ID: NewNodeID(), Type: t, Inputs: make(map[string]value.Value)}
}

// Enabled reports whether the node takes part in execution.
func (n *Node) Enabled() bool {
	return !n.Disabled
}

// Spec returns the catalog entry for the node's type.
func (n *Node) Spec() (*NodeSpec, bool) {
	return Lookup(n.Type)
}

// IsFlow reports whether the node participates in execution flow.
func (n *Node) IsFlow() bool {
	spec, ok := n.Spec()
	return ok && spec.Flow
}

// Literal returns the literal value set for an input port.
func (n *Node) Literal(port string) (value.Value, bool) {
	if n.Inputs == nil {
		return value.Null, false
	}
	v, ok := n.Inputs[port]
	return v, ok
}

// SetInput sets the literal value of an input port.
func (n *Node) SetInput(port string, v value.Value) *Node {
	if n.Inputs == nil {
		n.Inputs = make(map[string]value.Value)
	}
	n.Inputs[port] = v
	return n
}

// Title returns the display name, falling back to the type name.
func (n *Node) Title() string {
	if n.DisplayName != "" {
		return n.DisplayName
	}
	return string(n.Type)
}

// Validate checks the node against its catalog entry.
func (n *Node) Validate() error {
	if n.ID == "" {
		return errors.New("node: empty node ID")
	}
	spec, ok := n.Spec()
	if !ok {
		return fmt.Errorf("node %s: unknown node type: %s", n.ID, n.Type)
	}
	for port := range n.Inputs {
		p, ok := spec.Input(port)
		if !ok {
			return fmt.Errorf("node %s: literal for undeclared input %q: %w", n.ID, port, ErrPortNotFound)
		}
		if p.Type == value.TypeFlow {
			return fmt.Errorf("node %s: literal for flow input %q", n.ID, port)
		}
	}
	if (n.Type == TypeGetVariable || n.Type == TypeSetVariable) && n.Name == "" {
		return fmt.Errorf("node %s: %s requires a variable name", n.ID, n.Type)
	}
	return nil
}
