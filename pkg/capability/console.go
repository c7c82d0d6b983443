package capability

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// LineConsole prompts on a writer and reads lines from a reader.
type LineConsole struct {
	mu     sync.Mutex
	reader *bufio.Reader
	out    io.Writer
}

// NewLineConsole creates a console over r and w.
func NewLineConsole(r io.Reader, w io.Writer) *LineConsole {
	return &LineConsole{reader: bufio.NewReader(r), out: w}
}

// ReadLine prints prompt and returns the next line without its terminator.
// A cancelled context abandons the pending read.
func (c *LineConsole) ReadLine(ctx context.Context, prompt string) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if prompt != "" && c.out != nil {
			fmt.Fprint(c.out, prompt)
		}
		line, err := c.reader.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		done <- result{strings.TrimRight(line, "\r\n"), err}
	}()

	select {
	case r := <-done:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
