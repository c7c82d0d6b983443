package workflow

import (
	"errors"
	"fmt"
)

// Endpoint names one port of one node.
type Endpoint struct {
	Node string `json:"node" yaml:"node"`
	Port string `json:"port" yaml:"port"`
}

// String renders the endpoint as node.port.
func (e Endpoint) String() string {
	return e.Node + "." + e.Port
}

// Connection links an output port to an input port.
type Connection struct {
	From Endpoint `json:"from" yaml:"from"`
	To   Endpoint `json:"to" yaml:"to"`
}

// Validate checks that both endpoints are filled in
func (c *Connection) Validate() error {
	if c.From.Node == "" {
		return errors.New("connection: empty from node")
	}
	if c.To.Node == "" {
		return errors.New("connection: empty to node")
	}
	if c.From.Port == "" || c.To.Port == "" {
		return fmt.Errorf("connection %s -> %s: empty port name", c.From, c.To)
	}
	return nil
}

// String renders the connection as from -> to.
func (c *Connection) String() string {
	return c.From.String() + " -> " + c.To.String()
}
