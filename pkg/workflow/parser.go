package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/nodeflow/pkg/value"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// document is the serialized form of a graph, shared by YAML and JSON
type document struct {
	ID          string               `json:"id,omitempty" yaml:"id,omitempty"`
	Version     string               `json:"version" yaml:"version"`
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Metadata    *GraphMetadata       `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Variables   []documentVariable   `json:"variables,omitempty" yaml:"variables,omitempty"`
	Nodes       []documentNode       `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Connections []documentConnection `json:"connections,omitempty" yaml:"connections,omitempty"`
}

// documentVariable represents a variable declaration
type documentVariable struct {
	Name        string      `json:"name" yaml:"name"`
	Type        string      `json:"type,omitempty" yaml:"type,omitempty"`
	Default     value.Value `json:"default,omitempty" yaml:"default,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

// documentNode represents a node; port literals live under inputs
type documentNode struct {
	ID       string                 `json:"id" yaml:"id"`
	Type     string                 `json:"type" yaml:"type"`
	Variable string                 `json:"variable,omitempty" yaml:"variable,omitempty"`
	Label    string                 `json:"label,omitempty" yaml:"label,omitempty"`
	Position *Position              `json:"position,omitempty" yaml:"position,omitempty"`
	Disabled bool                   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Inputs   map[string]value.Value `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Note     string                 `json:"note,omitempty" yaml:"note,omitempty"`
}

// documentConnection represents a connection. Ports default to Next and In.
type documentConnection struct {
	From     string `json:"from" yaml:"from"`
	FromPort string `json:"from_port,omitempty" yaml:"from_port,omitempty"`
	To       string `json:"to" yaml:"to"`
	ToPort   string `json:"to_port,omitempty" yaml:"to_port,omitempty"`
}

// Parse parses a graph from YAML bytes and validates it
func Parse(yamlBytes []byte) (*Graph, error) {
	g, err := Decode(yamlBytes)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	return g, nil
}

// Decode parses a graph from YAML bytes without validating it
func Decode(yamlBytes []byte) (*Graph, error) {
	if len(yamlBytes) == 0 {
		return nil, errors.New("empty YAML input")
	}

	var doc document
	if err := yaml.Unmarshal(yamlBytes, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return doc.graph()
}

// ParseJSON parses a graph from JSON bytes and validates it
func ParseJSON(jsonBytes []byte) (*Graph, error) {
	if len(jsonBytes) == 0 {
		return nil, errors.New("empty JSON input")
	}

	var doc document
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	g, err := doc.graph()
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	return g, nil
}

// ParseFile parses a graph file; .json files are read as JSON, anything else as YAML
func ParseFile(filePath string) (*Graph, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		return ParseJSON(data)
	}
	return Parse(data)
}

func (doc *document) graph() (*Graph, error) {
	if doc.Name == "" {
		return nil, errors.New("missing required field: name")
	}
	g := &Graph{
		ID:          GraphID(doc.ID),
		Name:        doc.Name,
		Version:     doc.Version,
		Description: doc.Description,
		Variables:   make([]*Variable, 0, len(doc.Variables)),
		Nodes:       make([]*Node, 0, len(doc.Nodes)),
		Connections: make([]*Connection, 0, len(doc.Connections)),
	}
	if g.ID == "" {
		g.ID = NewGraphID()
	}
	if g.Version == "" {
		g.Version = "1.0"
	}
	if doc.Metadata != nil {
		g.Metadata = *doc.Metadata
	}

	for _, dv := range doc.Variables {
		if err := g.AddVariable(&Variable{
			Name:        dv.Name,
			Type:        value.DataType(dv.Type),
			Default:     dv.Default,
			Description: dv.Description,
		}); err != nil {
			return nil, fmt.Errorf("failed to add variable: %w", err)
		}
	}

	for _, dn := range doc.Nodes {
		if dn.ID == "" {
			return nil, errors.New("node ID cannot be empty")
		}
		if dn.Type == "" {
			return nil, fmt.Errorf("node '%s': type cannot be empty", dn.ID)
		}
		n := &Node{
			ID:          dn.ID,
			Type:        NodeType(dn.Type),
			Name:        dn.Variable,
			DisplayName: dn.Label,
			Disabled:    dn.Disabled,
			Inputs:      dn.Inputs,
			Note:        dn.Note,
		}
		if n.Inputs == nil {
			n.Inputs = make(map[string]value.Value)
		}
		if dn.Position != nil {
			n.Position = *dn.Position
		}
		if err := g.AddNode(n); err != nil {
			return nil, fmt.Errorf("failed to add node: %w", err)
		}
	}

	for _, dc := range doc.Connections {
		c := &Connection{
			From: Endpoint{Node: dc.From, Port: dc.FromPort},
			To:   Endpoint{Node: dc.To, Port: dc.ToPort},
		}
		if c.From.Port == "" {
			c.From.Port = PortNext
		}
		if c.To.Port == "" {
			c.To.Port = PortIn
		}
		g.Connections = append(g.Connections, c)
	}

	return g, nil
}

func toDocument(g *Graph) document {
	doc := document{
		ID:          g.ID.String(),
		Version:     g.Version,
		Name:        g.Name,
		Description: g.Description,
		Metadata:    &g.Metadata,
		Variables:   make([]documentVariable, 0, len(g.Variables)),
		Nodes:       make([]documentNode, 0, len(g.Nodes)),
		Connections: make([]documentConnection, 0, len(g.Connections)),
	}
	for _, v := range g.Variables {
		doc.Variables = append(doc.Variables, documentVariable{
			Name:        v.Name,
			Type:        string(v.Type),
			Default:     v.Default,
			Description: v.Description,
		})
	}
	for _, n := range g.Nodes {
		dn := documentNode{
			ID:       n.ID,
			Type:     string(n.Type),
			Variable: n.Name,
			Label:    n.DisplayName,
			Disabled: n.Disabled,
			Note:     n.Note,
		}
		if len(n.Inputs) > 0 {
			dn.Inputs = n.Inputs
		}
		if n.Position != (Position{}) {
			pos := n.Position
			dn.Position = &pos
		}
		doc.Nodes = append(doc.Nodes, dn)
	}
	for _, c := range g.Connections {
		dc := documentConnection{From: c.From.Node, FromPort: c.From.Port, To: c.To.Node, ToPort: c.To.Port}
		if dc.FromPort == PortNext {
			dc.FromPort = ""
		}
		if dc.ToPort == PortIn {
			dc.ToPort = ""
		}
		doc.Connections = append(doc.Connections, dc)
	}
	return doc
}

// ToYAML serializes a graph to YAML bytes
func ToYAML(g *Graph) ([]byte, error) {
	if g == nil {
		return nil, errors.New("graph cannot be nil")
	}
	doc := toDocument(g)
	yamlBytes, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to YAML: %w", err)
	}
	return yamlBytes, nil
}

// ToJSON serializes a graph to indented JSON bytes
func ToJSON(g *Graph) ([]byte, error) {
	if g == nil {
		return nil, errors.New("graph cannot be nil")
	}
	doc := toDocument(g)
	data, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	return data, nil
}
