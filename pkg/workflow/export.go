package workflow

import (
	"errors"
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/dshills/nodeflow/pkg/value"
)

// redacted replaces literals that look like credentials in exported graphs
const redacted = "<CREDENTIAL_REQUIRED>"

// sensitiveNamePatterns are name fragments that indicate sensitive credentials
var sensitiveNamePatterns = []string{
	"KEY",
	"SECRET",
	"TOKEN",
	"PASSWORD",
	"PASSPHRASE",
	"CREDENTIAL",
	"AUTH",
	"BEARER",
	"PRIVATE",
}

// credentialPatterns are regex patterns that detect potential credentials in values
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),                 // AWS Access Key ID
	regexp.MustCompile(`(?i)sk_(live|test)_[a-zA-Z0-9]{24,}`), // Stripe keys
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),     // GitHub PAT
	regexp.MustCompile(`github_pat_[a-zA-Z0-9_]{82}`),     // GitHub fine-grained PAT
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9\-_=]+\.[A-Za-z0-9\-_=]+\.?[A-Za-z0-9\-_.+/=]*`), // JWT tokens
	regexp.MustCompile(`(?i)-----BEGIN\s+(RSA|DSA|EC|OPENSSH)\s+PRIVATE\s+KEY-----`),
	regexp.MustCompile(`(?i)(postgres|mysql|mongodb)://[^:]+:[^@]+@`), // DB URLs with credentials
	regexp.MustCompile(`(?i)https?://[^/\s:@]+:[^/\s@]+@`),            // URLs with basic auth
	regexp.MustCompile(`(?i)(api[_-]?key|token|password)=[^&\s]{8,}`), // query string secrets
}

// CredentialWarning represents a potential credential leak detected in a graph
type CredentialWarning struct {
	Location string // e.g. "nodes.http1.inputs.URL"
	Pattern  string
	Severity string // "high" or "medium"
	Message  string
}

// ScanForCredentials scans a graph for potential credential leaks in its
// description, variable defaults and node literals
func ScanForCredentials(g *Graph) []CredentialWarning {
	if g == nil {
		return nil
	}

	var warnings []CredentialWarning
	warnings = append(warnings, scanStringForCredentials(g.Description, "graph.description")...)

	for _, v := range g.Variables {
		location := "variables." + v.Name
		if isSensitiveName(v.Name) && !v.Default.IsNull() {
			warnings = append(warnings, CredentialWarning{
				Location: location + ".default",
				Pattern:  "sensitive variable name",
				Severity: "medium",
				Message:  fmt.Sprintf("Variable name '%s' suggests it may contain credentials", v.Name),
			})
		}
		warnings = append(warnings, scanValueForCredentials(v.Default, location+".default")...)
	}

	for _, n := range g.Nodes {
		ports := make([]string, 0, len(n.Inputs))
		for port := range n.Inputs {
			ports = append(ports, port)
		}
		sort.Strings(ports)
		for _, port := range ports {
			warnings = append(warnings, scanValueForCredentials(n.Inputs[port], "nodes."+n.ID+".inputs."+port)...)
		}
		warnings = append(warnings, scanStringForCredentials(n.Note, "nodes."+n.ID+".note")...)
	}

	return warnings
}

func scanValueForCredentials(v value.Value, location string) []CredentialWarning {
	switch v.Kind() {
	case value.KindString:
		return scanStringForCredentials(v.ToString(), location)
	case value.KindArray:
		var warnings []CredentialWarning
		for i, item := range v.Items() {
			warnings = append(warnings, scanValueForCredentials(item, fmt.Sprintf("%s[%d]", location, i))...)
		}
		return warnings
	}
	return nil
}

// scanStringForCredentials scans a string for potential credentials
func scanStringForCredentials(s, location string) []CredentialWarning {
	if s == "" {
		return nil
	}

	for _, pattern := range credentialPatterns {
		if pattern.MatchString(s) {
			return []CredentialWarning{{
				Location: location,
				Pattern:  pattern.String(),
				Severity: "high",
				Message:  "Potential credential detected in value",
			}}
		}
	}

	if !strings.ContainsAny(s, " \t\n") && isHighEntropyString(s) {
		return []CredentialWarning{{
			Location: location,
			Pattern:  "high entropy string",
			Severity: "medium",
			Message:  fmt.Sprintf("String has high entropy (%d chars), may be a credential", len(s)),
		}}
	}

	return nil
}

// isHighEntropyString reports a Shannon entropy above 4 bits per character
// for strings of at least 20 characters
func isHighEntropyString(s string) bool {
	if len(s) < 20 {
		return false
	}

	freq := make(map[rune]int)
	total := 0
	for _, char := range s {
		freq[char]++
		total++
	}

	var entropy float64
	for _, count := range freq {
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy > 4.0
}

// isSensitiveName checks if a name contains sensitive information
func isSensitiveName(name string) bool {
	upper := strings.ToUpper(name)
	for _, pattern := range sensitiveNamePatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}

// ExportWithWarnings exports a graph and returns any credential warnings
func ExportWithWarnings(g *Graph) ([]byte, []CredentialWarning, error) {
	if g == nil {
		return nil, nil, errors.New("graph cannot be nil")
	}

	warnings := ScanForCredentials(g)
	yamlBytes, err := Export(g)
	if err != nil {
		return nil, warnings, err
	}
	return yamlBytes, warnings, nil
}

// Export renders a graph as YAML for sharing. Literals flagged by
// ScanForCredentials and defaults of sensitive variables are replaced with a
// placeholder. The graph itself is not modified.
func Export(g *Graph) ([]byte, error) {
	if g == nil {
		return nil, errors.New("graph cannot be nil")
	}

	cp := deepCopyGraph(g)
	for _, v := range cp.Variables {
		if !v.Default.IsNull() && (isSensitiveName(v.Name) || len(scanValueForCredentials(v.Default, "")) > 0) {
			v.Default = value.String(redacted)
		}
	}
	for _, n := range cp.Nodes {
		for port, lit := range n.Inputs {
			if len(scanValueForCredentials(lit, "")) > 0 {
				n.Inputs[port] = value.String(redacted)
			}
		}
	}

	yamlBytes, err := ToYAML(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to convert graph to YAML: %w", err)
	}

	comment := "# CREDENTIAL WARNING: This graph has been exported for sharing.\n" +
		"# Values marked " + redacted + " must be filled in before use.\n\n"
	return append([]byte(comment), yamlBytes...), nil
}

// ExportFile exports a graph to a YAML file with credentials stripped
func ExportFile(g *Graph, path string) error {
	if path == "" {
		return errors.New("file path cannot be empty")
	}

	yamlBytes, err := Export(g)
	if err != nil {
		return fmt.Errorf("failed to export graph: %w", err)
	}

	if err := os.WriteFile(path, yamlBytes, 0644); err != nil {
		return fmt.Errorf("failed to write graph file: %w", err)
	}
	return nil
}

// Clone returns a deep copy of the graph
func (g *Graph) Clone() *Graph {
	return deepCopyGraph(g)
}

func deepCopyGraph(g *Graph) *Graph {
	cp := *g
	cp.Metadata.Tags = append([]string(nil), g.Metadata.Tags...)
	cp.Variables = make([]*Variable, len(g.Variables))
	for i, v := range g.Variables {
		vc := *v
		cp.Variables[i] = &vc
	}
	cp.Nodes = make([]*Node, len(g.Nodes))
	for i, n := range g.Nodes {
		nc := *n
		nc.Inputs = make(map[string]value.Value, len(n.Inputs))
		for k, v := range n.Inputs {
			nc.Inputs[k] = v
		}
		cp.Nodes[i] = &nc
	}
	cp.Connections = make([]*Connection, len(g.Connections))
	for i, c := range g.Connections {
		cc := *c
		cp.Connections[i] = &cc
	}
	return &cp
}
