package workflow

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/nodeflow/pkg/value"
)

// Well-known port names
const (
	PortIn       = "In"
	PortNext     = "Next"
	PortTrue     = "True"
	PortFalse    = "False"
	PortLoop     = "Loop"
	PortDone     = "Done"
	PortIndex    = "Index"
	PortContinue = "Continue"
	PortTimedOut = "Timed Out"
	PortValue    = "Value"
	PortOut      = "Out"
	PortSuccess  = "Success"
	PortFound    = "Found"
)

// Node categories
const (
	CategoryControl    = "Control"
	CategoryVariables  = "Variables"
	CategoryMath       = "Math"
	CategoryComparison = "Comparison"
	CategoryLogic      = "Logic"
	CategoryString     = "String"
	CategoryConversion = "Conversion"
	CategoryArray      = "Array"
	CategoryJSON       = "JSON"
	CategoryIO         = "I/O"
	CategorySystem     = "System"
	CategoryInput      = "Input"
	CategoryScreen     = "Screen"
	CategoryMisc       = "Misc"
)

// PortSpec declares one port of a node type.
type PortSpec struct {
	Name    string
	Type    value.DataType
	Default value.Value
}

// PortFamily declares a numbered run of ports such as "Out1", "Out2", ...
type PortFamily struct {
	Prefix  string
	Start   int
	Type    value.DataType
	Default value.Value
}

// Name returns the name of member i.
func (f *PortFamily) Name(i int) string {
	return f.Prefix + strconv.Itoa(i)
}

// Member parses a port name and returns its index within the family.
func (f *PortFamily) Member(name string) (int, bool) {
	if f == nil || !strings.HasPrefix(name, f.Prefix) {
		return 0, false
	}
	suffix := name[len(f.Prefix):]
	i, err := strconv.Atoi(suffix)
	if err != nil || i < f.Start || strconv.Itoa(i) != suffix {
		return 0, false
	}
	return i, true
}

func (f *PortFamily) spec(name string) PortSpec {
	return PortSpec{Name: name, Type: f.Type, Default: f.Default}
}

// NodeSpec is the catalog entry of a node type.
type NodeSpec struct {
	Type        NodeType
	Category    string
	Description string
	// Flow is true for nodes with execution-flow ports.
	Flow         bool
	Inputs       []PortSpec
	Outputs      []PortSpec
	InputFamily  *PortFamily
	OutputFamily *PortFamily
}

// Input returns the declared input port with the given name.
func (s *NodeSpec) Input(name string) (PortSpec, bool) {
	for _, p := range s.Inputs {
		if p.Name == name {
			return p, true
		}
	}
	if _, ok := s.InputFamily.Member(name); ok {
		return s.InputFamily.spec(name), true
	}
	return PortSpec{}, false
}

// Output returns the declared output port with the given name.
func (s *NodeSpec) Output(name string) (PortSpec, bool) {
	for _, p := range s.Outputs {
		if p.Name == name {
			return p, true
		}
	}
	if _, ok := s.OutputFamily.Member(name); ok {
		return s.OutputFamily.spec(name), true
	}
	return PortSpec{}, false
}

// DataOutputs returns the declared non-flow outputs.
func (s *NodeSpec) DataOutputs() []PortSpec {
	out := make([]PortSpec, 0, len(s.Outputs))
	for _, p := range s.Outputs {
		if p.Type != value.TypeFlow {
			out = append(out, p)
		}
	}
	return out
}

var catalog = map[NodeType]*NodeSpec{}

// Lookup returns the catalog entry for t.
func Lookup(t NodeType) (*NodeSpec, bool) {
	s, ok := catalog[t]
	return s, ok
}

// Catalog returns every node spec ordered by category and type.
func Catalog() []*NodeSpec {
	out := make([]*NodeSpec, 0, len(catalog))
	for _, s := range catalog {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Type < out[j].Type
	})
	return out
}

func register(s *NodeSpec) {
	for _, p := range s.Inputs {
		if p.Type == value.TypeFlow {
			s.Flow = true
		}
	}
	for _, p := range s.Outputs {
		if p.Type == value.TypeFlow {
			s.Flow = true
		}
	}
	if s.OutputFamily != nil && s.OutputFamily.Type == value.TypeFlow {
		s.Flow = true
	}
	catalog[s.Type] = s
}

func flow(name string) PortSpec { return PortSpec{Name: name, Type: value.TypeFlow} }

func intPort(name string, def int64) PortSpec {
	return PortSpec{Name: name, Type: value.TypeInteger, Default: value.Int(def)}
}

func floatPort(name string, def float64) PortSpec {
	return PortSpec{Name: name, Type: value.TypeFloat, Default: value.Float(def)}
}

func boolPort(name string, def bool) PortSpec {
	return PortSpec{Name: name, Type: value.TypeBool, Default: value.Bool(def)}
}

func strPort(name, def string) PortSpec {
	return PortSpec{Name: name, Type: value.TypeString, Default: value.String(def)}
}

func anyPort(name string) PortSpec { return PortSpec{Name: name, Type: value.TypeAny} }

func arrayPort(name string) PortSpec {
	return PortSpec{Name: name, Type: value.TypeArray, Default: value.Array()}
}

func ports(p ...PortSpec) []PortSpec { return p }

// automation registers an input-automation flow node: In plus inputs, Next.
func automation(t NodeType, desc string, inputs ...PortSpec) {
	register(&NodeSpec{
		Type: t, Category: CategoryInput, Description: desc,
		Inputs:  append(ports(flow(PortIn)), inputs...),
		Outputs: ports(flow(PortNext)),
	})
}

func binaryMath(t NodeType, desc string, b float64) {
	register(&NodeSpec{
		Type: t, Category: CategoryMath, Description: desc,
		Inputs:  ports(floatPort("A", 0), floatPort("B", b)),
		Outputs: ports(floatPort(PortOut, 0)),
	})
}

func comparison(t NodeType, desc string) {
	register(&NodeSpec{
		Type: t, Category: CategoryComparison, Description: desc,
		Inputs:  ports(floatPort("A", 0), floatPort("B", 0)),
		Outputs: ports(boolPort(PortOut, false)),
	})
}

func logic(t NodeType, desc string) {
	register(&NodeSpec{
		Type: t, Category: CategoryLogic, Description: desc,
		Inputs:  ports(boolPort("A", false), boolPort("B", false)),
		Outputs: ports(boolPort(PortOut, false)),
	})
}

func init() {
	// Control
	register(&NodeSpec{Type: TypeEntry, Category: CategoryControl, Description: "Start of a run",
		Outputs: ports(flow(PortNext))})
	register(&NodeSpec{Type: TypeBranch, Category: CategoryControl, Description: "Transfers to True or False",
		Inputs:  ports(flow(PortIn), boolPort("Condition", false)),
		Outputs: ports(flow(PortTrue), flow(PortFalse))})
	register(&NodeSpec{Type: TypeSequence, Category: CategoryControl, Description: "Runs every numbered output in order",
		Inputs:       ports(flow(PortIn)),
		OutputFamily: &PortFamily{Prefix: "Out", Start: 1, Type: value.TypeFlow}})
	register(&NodeSpec{Type: TypeGate, Category: CategoryControl, Description: "Passes control only while open",
		Inputs:  ports(flow(PortIn), boolPort("Open", true)),
		Outputs: ports(flow(PortNext))})
	register(&NodeSpec{Type: TypeForLoop, Category: CategoryControl, Description: "Runs the body for each index in [Start, End)",
		Inputs:  ports(flow(PortIn), intPort("Start", 0), intPort("End", 10)),
		Outputs: ports(flow(PortLoop), intPort(PortIndex, 0), flow(PortDone))})
	register(&NodeSpec{Type: TypeWhileLoop, Category: CategoryControl, Description: "Runs the body while the condition holds",
		Inputs:  ports(flow(PortIn), boolPort("Condition", true)),
		Outputs: ports(flow(PortLoop), flow(PortDone))})
	register(&NodeSpec{Type: TypeForLoopAsync, Category: CategoryControl, Description: "ForLoop that waits for Continue between iterations",
		Inputs:  ports(flow(PortIn), intPort("Start", 0), intPort("End", 10), flow(PortContinue)),
		Outputs: ports(flow(PortLoop), intPort(PortIndex, 0), flow(PortDone))})
	register(&NodeSpec{Type: TypeWaitForCondition, Category: CategoryControl, Description: "Polls a condition until true or timeout",
		Inputs:  ports(flow(PortIn), boolPort("Condition", false), intPort("Poll Interval (ms)", 100), intPort("Timeout (ms)", 0)),
		Outputs: ports(flow(PortNext), flow(PortTimedOut))})
	register(&NodeSpec{Type: TypeDelay, Category: CategoryControl, Description: "Suspends the flow",
		Inputs:  ports(flow(PortIn), intPort("Duration (ms)", 1000)),
		Outputs: ports(flow(PortNext))})
	register(&NodeSpec{Type: TypeNotes, Category: CategoryMisc, Description: "Editor annotation"})

	// Variables
	register(&NodeSpec{Type: TypeGetVariable, Category: CategoryVariables, Description: "Reads a variable",
		Outputs: ports(anyPort(PortValue))})
	register(&NodeSpec{Type: TypeSetVariable, Category: CategoryVariables, Description: "Writes a variable",
		Inputs:  ports(flow(PortIn), anyPort(PortValue)),
		Outputs: ports(flow(PortNext), anyPort(PortValue))})

	// Math
	binaryMath(TypeAdd, "A + B", 0)
	binaryMath(TypeSubtract, "A - B", 0)
	binaryMath(TypeMultiply, "A * B", 0)
	binaryMath(TypeDivide, "A / B; a zero divisor counts as one", 1)
	binaryMath(TypeMin, "Smaller of A and B", 0)
	binaryMath(TypeMax, "Larger of A and B", 0)
	register(&NodeSpec{Type: TypeModulo, Category: CategoryMath, Description: "A % B; a zero divisor counts as one",
		Inputs:  ports(intPort("A", 0), intPort("B", 1)),
		Outputs: ports(intPort(PortOut, 0))})
	register(&NodeSpec{Type: TypePower, Category: CategoryMath, Description: "Base raised to Exponent",
		Inputs:  ports(floatPort("Base", 2), floatPort("Exponent", 2)),
		Outputs: ports(floatPort(PortOut, 0))})
	register(&NodeSpec{Type: TypeAbs, Category: CategoryMath, Description: "Absolute value",
		Inputs:  ports(floatPort(PortIn, 0)),
		Outputs: ports(floatPort(PortOut, 0))})
	register(&NodeSpec{Type: TypeClamp, Category: CategoryMath, Description: "Limits Value to [Min, Max]",
		Inputs:  ports(floatPort("Value", 0), floatPort("Min", 0), floatPort("Max", 1)),
		Outputs: ports(floatPort(PortOut, 0))})
	register(&NodeSpec{Type: TypeRandom, Category: CategoryMath, Description: "Uniform random number in [Min, Max)",
		Inputs:  ports(floatPort("Min", 0), floatPort("Max", 1)),
		Outputs: ports(floatPort(PortOut, 0))})
	register(&NodeSpec{Type: TypeConstant, Category: CategoryMath, Description: "Emits its Value input",
		Inputs:  ports(PortSpec{Name: PortValue, Type: value.TypeAny, Default: value.Float(0)}),
		Outputs: ports(anyPort(PortOut))})

	// Comparison and logic
	comparison(TypeEquals, "A == B")
	comparison(TypeNotEquals, "A != B")
	comparison(TypeGreaterThan, "A > B")
	comparison(TypeGreaterThanOrEqual, "A >= B")
	comparison(TypeLessThan, "A < B")
	comparison(TypeLessThanOrEqual, "A <= B")
	logic(TypeAnd, "A and B")
	logic(TypeOr, "A or B")
	logic(TypeXor, "A xor B")
	register(&NodeSpec{Type: TypeNot, Category: CategoryLogic, Description: "not In",
		Inputs:  ports(boolPort(PortIn, false)),
		Outputs: ports(boolPort(PortOut, true))})

	// Strings
	register(&NodeSpec{Type: TypeConcat, Category: CategoryString, Description: "A followed by B",
		Inputs:  ports(strPort("A", ""), strPort("B", "")),
		Outputs: ports(strPort(PortOut, ""))})
	register(&NodeSpec{Type: TypeSplit, Category: CategoryString, Description: "Part Index of String split on Delimiter",
		Inputs:  ports(strPort("String", ""), strPort("Delimiter", ","), intPort("Index", 0)),
		Outputs: ports(strPort(PortOut, ""), arrayPort("Parts"))})
	register(&NodeSpec{Type: TypeLength, Category: CategoryString, Description: "Number of characters",
		Inputs:  ports(strPort("String", "")),
		Outputs: ports(intPort(PortOut, 0))})
	register(&NodeSpec{Type: TypeContains, Category: CategoryString, Description: "String contains Substring",
		Inputs:  ports(strPort("String", ""), strPort("Substring", "")),
		Outputs: ports(boolPort(PortOut, false))})
	register(&NodeSpec{Type: TypeReplace, Category: CategoryString, Description: "Replaces every From with To",
		Inputs:  ports(strPort("String", ""), strPort("From", ""), strPort("To", "")),
		Outputs: ports(strPort(PortOut, ""))})
	register(&NodeSpec{Type: TypeFormat, Category: CategoryString, Description: "Fills each {} of Template with the next Arg",
		Inputs:      ports(strPort("Template", "Hello {}!")),
		InputFamily: &PortFamily{Prefix: "Arg", Start: 0, Type: value.TypeAny, Default: value.String("")},
		Outputs:     ports(strPort(PortOut, ""))})
	register(&NodeSpec{Type: TypeStringJoin, Category: CategoryString, Description: "Concatenates Input 0, Input 1, ...",
		Inputs:      ports(strPort("Separator", "")),
		InputFamily: &PortFamily{Prefix: "Input ", Start: 0, Type: value.TypeString, Default: value.String("")},
		Outputs:     ports(strPort(PortOut, ""))})
	register(&NodeSpec{Type: TypeStringBetween, Category: CategoryString, Description: "Text between Before and After",
		Inputs:  ports(strPort("Source", ""), strPort("Before", ""), strPort("After", "")),
		Outputs: ports(strPort(PortOut, ""), boolPort(PortFound, false))})
	register(&NodeSpec{Type: TypeStringTrim, Category: CategoryString, Description: "Trims whitespace; Mode 0 both, 1 start, 2 end, 3 all",
		Inputs:  ports(strPort("String", ""), intPort("Mode", 0)),
		Outputs: ports(strPort(PortOut, ""))})
	register(&NodeSpec{Type: TypeExtractAfter, Category: CategoryString, Description: "Length characters after Keyword",
		Inputs:  ports(strPort("Source", ""), strPort("Keyword", ""), intPort("Length", 10)),
		Outputs: ports(strPort("Result", ""), boolPort(PortFound, false))})
	register(&NodeSpec{Type: TypeExtractUntil, Category: CategoryString, Description: "Text after Keyword up to Delimiter",
		Inputs:  ports(strPort("Source", ""), strPort("Keyword", ""), strPort("Delimiter", ",")),
		Outputs: ports(strPort("Result", ""), boolPort(PortFound, false))})

	// Conversion and time
	register(&NodeSpec{Type: TypeToInteger, Category: CategoryConversion, Description: "Converts to integer",
		Inputs: ports(intPort(PortIn, 0)), Outputs: ports(intPort(PortOut, 0))})
	register(&NodeSpec{Type: TypeToFloat, Category: CategoryConversion, Description: "Converts to float",
		Inputs: ports(floatPort(PortIn, 0)), Outputs: ports(floatPort(PortOut, 0))})
	register(&NodeSpec{Type: TypeToString, Category: CategoryConversion, Description: "Converts to string",
		Inputs:  ports(PortSpec{Name: PortIn, Type: value.TypeAny, Default: value.String("")}),
		Outputs: ports(strPort(PortOut, ""))})
	register(&NodeSpec{Type: TypeGetTimestamp, Category: CategoryConversion, Description: "Unix time in milliseconds or seconds",
		Inputs:  ports(boolPort("Milliseconds", true)),
		Outputs: ports(intPort("Timestamp", 0))})

	// Arrays
	register(&NodeSpec{Type: TypeArrayCreate, Category: CategoryArray, Description: "Builds an array from Item 0, Item 1, ...",
		InputFamily: &PortFamily{Prefix: "Item ", Start: 0, Type: value.TypeAny},
		Outputs:     ports(arrayPort("Array"))})
	register(&NodeSpec{Type: TypeArrayGet, Category: CategoryArray, Description: "Element at Index",
		Inputs:  ports(arrayPort("Array"), intPort("Index", 0)),
		Outputs: ports(anyPort(PortValue))})
	register(&NodeSpec{Type: TypeArrayLength, Category: CategoryArray, Description: "Number of elements",
		Inputs:  ports(arrayPort("Array")),
		Outputs: ports(intPort("Length", 0))})
	register(&NodeSpec{Type: TypeArrayPush, Category: CategoryArray, Description: "Appends Value to an array variable",
		Inputs:  ports(flow(PortIn), strPort("Variable", "myArray"), anyPort(PortValue)),
		Outputs: ports(flow(PortNext))})
	register(&NodeSpec{Type: TypeArrayPop, Category: CategoryArray, Description: "Removes the last element of an array variable",
		Inputs:  ports(flow(PortIn), strPort("Variable", "myArray")),
		Outputs: ports(flow(PortNext), anyPort(PortValue), boolPort(PortSuccess, false))})
	register(&NodeSpec{Type: TypeArraySet, Category: CategoryArray, Description: "Replaces the element at Index of an array variable",
		Inputs:  ports(flow(PortIn), strPort("Variable", "myArray"), intPort("Index", 0), anyPort(PortValue)),
		Outputs: ports(flow(PortNext))})

	// JSON and expressions
	register(&NodeSpec{Type: TypeJSONParse, Category: CategoryJSON, Description: "Decodes JSON text",
		Inputs:  ports(strPort("JSON", "{}")),
		Outputs: ports(anyPort(PortValue), boolPort(PortSuccess, false))})
	register(&NodeSpec{Type: TypeJSONStringify, Category: CategoryJSON, Description: "Encodes a value as JSON",
		Inputs:  ports(anyPort(PortValue)),
		Outputs: ports(strPort("JSON", ""))})
	register(&NodeSpec{Type: TypeJSONQuery, Category: CategoryJSON, Description: "Selects Path from JSON",
		Inputs:  ports(strPort("JSON", "{}"), strPort("Path", "")),
		Outputs: ports(anyPort(PortValue), boolPort(PortFound, false))})
	register(&NodeSpec{Type: TypeExpression, Category: CategoryJSON, Description: "Evaluates an expression over A, B, C and variables",
		Inputs:  ports(strPort("Expression", ""), anyPort("A"), anyPort("B"), anyPort("C")),
		Outputs: ports(anyPort(PortOut), boolPort(PortSuccess, false))})

	// I/O
	register(&NodeSpec{Type: TypePrint, Category: CategoryIO, Description: "Logs String",
		Inputs:  ports(flow(PortIn), strPort("String", "Hello")),
		Outputs: ports(flow(PortNext))})
	register(&NodeSpec{Type: TypeReadInput, Category: CategoryIO, Description: "Reads a line from the console",
		Inputs:  ports(flow(PortIn), strPort("Prompt", "Enter value:")),
		Outputs: ports(flow(PortNext), strPort(PortValue, ""))})
	register(&NodeSpec{Type: TypeFileRead, Category: CategoryIO, Description: "Reads a text file",
		Inputs:  ports(strPort("Path", "")),
		Outputs: ports(strPort("Content", ""), boolPort(PortSuccess, false))})
	register(&NodeSpec{Type: TypeFileWrite, Category: CategoryIO, Description: "Writes a text file",
		Inputs:  ports(flow(PortIn), strPort("Path", ""), strPort("Content", "")),
		Outputs: ports(flow(PortNext), boolPort(PortSuccess, false))})

	// System
	register(&NodeSpec{Type: TypeRunCommand, Category: CategorySystem, Description: "Runs a shell command",
		Inputs:  ports(flow(PortIn), strPort("Command", ""), strPort("Args", "")),
		Outputs: ports(flow(PortNext), strPort("Output", ""), intPort("ExitCode", 0), boolPort(PortSuccess, false))})
	register(&NodeSpec{Type: TypeLaunchApp, Category: CategorySystem, Description: "Starts an application",
		Inputs:  ports(flow(PortIn), strPort("Path", ""), strPort("Args", "")),
		Outputs: ports(flow(PortNext), boolPort(PortSuccess, false))})
	register(&NodeSpec{Type: TypeCloseApp, Category: CategorySystem, Description: "Terminates an application by name",
		Inputs:  ports(flow(PortIn), strPort("Name", "")),
		Outputs: ports(flow(PortNext), boolPort(PortSuccess, false))})
	register(&NodeSpec{Type: TypeFocusWindow, Category: CategorySystem, Description: "Brings a window to the front",
		Inputs:  ports(flow(PortIn), strPort("Title", "")),
		Outputs: ports(flow(PortNext), boolPort(PortSuccess, false))})
	register(&NodeSpec{Type: TypeGetWindowPosition, Category: CategorySystem, Description: "Bounds of a window",
		Inputs:  ports(strPort("Title", "")),
		Outputs: ports(intPort("X", 0), intPort("Y", 0), intPort("Width", 0), intPort("Height", 0), boolPort(PortFound, false))})
	register(&NodeSpec{Type: TypeSetWindowPosition, Category: CategorySystem, Description: "Moves and resizes a window",
		Inputs:  ports(flow(PortIn), strPort("Title", ""), intPort("X", 0), intPort("Y", 0), intPort("Width", 800), intPort("Height", 600)),
		Outputs: ports(flow(PortNext), boolPort(PortSuccess, false))})
	register(&NodeSpec{Type: TypeHTTPRequest, Category: CategorySystem, Description: "Sends an HTTP request",
		Inputs:  ports(flow(PortIn), strPort("URL", "https://api.example.com"), strPort("Method", "GET"), strPort("Body", "")),
		Outputs: ports(flow(PortNext), strPort("Response", ""), intPort("Status", 0), boolPort(PortSuccess, false))})

	// Input automation
	automation(TypeClick, "Left click at X, Y", intPort("X", 0), intPort("Y", 0))
	automation(TypeDoubleClick, "Double click at X, Y", intPort("X", 0), intPort("Y", 0))
	automation(TypeRightClick, "Right click at X, Y", intPort("X", 0), intPort("Y", 0))
	automation(TypeMouseMove, "Moves the pointer to X, Y", intPort("X", 0), intPort("Y", 0))
	automation(TypeMouseDown, "Presses a mouse button", strPort("Button", "left"))
	automation(TypeMouseUp, "Releases a mouse button", strPort("Button", "left"))
	automation(TypeScroll, "Scrolls by X, Y", intPort("X", 0), intPort("Y", -3))
	automation(TypeKeyPress, "Taps a key", strPort("Key", "Return"))
	automation(TypeKeyDown, "Presses a key", strPort("Key", "Shift"))
	automation(TypeKeyUp, "Releases a key", strPort("Key", "Shift"))
	automation(TypeTypeText, "Types text", strPort("Text", "Hello World"))
	automation(TypeTypeString, "Types text one character at a time", strPort("Text", ""), intPort("Delay", 50))
	automation(TypeHotKey, "Presses a key combination", strPort("Key", "c"),
		boolPort("Ctrl", true), boolPort("Shift", false), boolPort("Alt", false), boolPort("Command", false))

	// Screen
	region := ports(intPort("RegionX", 0), intPort("RegionY", 0), intPort("RegionW", 1920), intPort("RegionH", 1080))
	register(&NodeSpec{Type: TypeScreenCapture, Category: CategoryScreen, Description: "Captures a display",
		Inputs:  ports(flow(PortIn), intPort("Display", 0)),
		Outputs: ports(flow(PortNext), strPort("ImagePath", ""), boolPort(PortSuccess, false))})
	register(&NodeSpec{Type: TypeSaveScreenshot, Category: CategoryScreen, Description: "Copies a capture to Filename",
		Inputs:  ports(flow(PortIn), strPort("ImagePath", ""), strPort("Filename", "screenshot.png")),
		Outputs: ports(flow(PortNext), strPort("SavedPath", ""), boolPort(PortSuccess, false))})
	register(&NodeSpec{Type: TypeRegionCapture, Category: CategoryScreen, Description: "Captures a screen region",
		Inputs:  ports(flow(PortIn), intPort("X", 0), intPort("Y", 0), intPort("Width", 200), intPort("Height", 100), strPort("Filename", "")),
		Outputs: ports(flow(PortNext), strPort("ImagePath", ""), boolPort(PortSuccess, false))})
	register(&NodeSpec{Type: TypeGetPixelColor, Category: CategoryScreen, Description: "Color of the pixel at X, Y",
		Inputs:  ports(flow(PortIn), intPort("X", 0), intPort("Y", 0)),
		Outputs: ports(flow(PortNext), intPort("R", 0), intPort("G", 0), intPort("B", 0), boolPort(PortSuccess, false))})
	register(&NodeSpec{Type: TypeFindColor, Category: CategoryScreen, Description: "First pixel matching a color",
		Inputs: append(ports(flow(PortIn), intPort("R", 255), intPort("G", 0), intPort("B", 0), intPort("Tolerance", 10)),
			region...),
		Outputs: ports(flow(PortNext), intPort("X", 0), intPort("Y", 0), boolPort(PortFound, false))})
	register(&NodeSpec{Type: TypeWaitForColor, Category: CategoryScreen, Description: "Waits until the pixel at X, Y matches a color",
		Inputs: ports(flow(PortIn), intPort("R", 255), intPort("G", 0), intPort("B", 0),
			intPort("X", 0), intPort("Y", 0), intPort("Tolerance", 10), intPort("Timeout", 5000)),
		Outputs: ports(flow(PortNext), flow(PortTimedOut), boolPort(PortFound, false))})
	register(&NodeSpec{Type: TypeFindImage, Category: CategoryScreen, Description: "Locates a template image on screen",
		Inputs:  append(ports(flow(PortIn), strPort("ImagePath", "template.png"), intPort("Tolerance", 10)), region...),
		Outputs: ports(flow(PortNext), intPort("X", 0), intPort("Y", 0), floatPort("Score", 0), boolPort(PortFound, false))})
	register(&NodeSpec{Type: TypeWaitForImage, Category: CategoryScreen, Description: "Waits until a template image appears",
		Inputs:  ports(flow(PortIn), strPort("ImagePath", "template.png"), intPort("Tolerance", 10), intPort("Timeout", 5000)),
		Outputs: ports(flow(PortNext), flow(PortTimedOut), intPort("X", 0), intPort("Y", 0), boolPort(PortFound, false))})
	register(&NodeSpec{Type: TypeImageSimilarity, Category: CategoryScreen, Description: "Fraction of matching pixels of two images",
		Inputs:  ports(strPort("ImagePath1", "image1.png"), strPort("ImagePath2", "image2.png"), intPort("Tolerance", 10)),
		Outputs: ports(floatPort("Similarity", 0), boolPort("Match", false))})
}
