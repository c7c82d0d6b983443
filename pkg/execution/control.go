package execution

import (
	"fmt"
	"time"

	"github.com/dshills/nodeflow/pkg/value"
	"github.com/dshills/nodeflow/pkg/workflow"
)

func registerControl(r *Registry) {
	r.RegisterFlow(workflow.TypeEntry, func(*Call) (string, error) { return workflow.PortNext, nil })
	r.RegisterFlow(workflow.TypeBranch, branch)
	r.RegisterFlow(workflow.TypeSequence, sequence)
	r.RegisterFlow(workflow.TypeGate, gate)
	r.RegisterFlow(workflow.TypeForLoop, forLoop)
	r.RegisterFlow(workflow.TypeWhileLoop, whileLoop)
	r.RegisterFlow(workflow.TypeForLoopAsync, forLoopAsync)
	r.RegisterFlow(workflow.TypeWaitForCondition, waitForCondition)
	r.RegisterFlow(workflow.TypeDelay, delay)
}

func branch(c *Call) (string, error) {
	if c.Bool("Condition") {
		return workflow.PortTrue, nil
	}
	return workflow.PortFalse, nil
}

// sequence runs every connected numbered output to completion, in order.
func sequence(c *Call) (string, error) {
	for _, port := range c.FamilyOutputs() {
		if err := c.Follow(port); err != nil {
			return "", err
		}
	}
	return "", nil
}

func gate(c *Call) (string, error) {
	if c.Bool("Open") {
		return workflow.PortNext, nil
	}
	return "", nil
}

func forLoop(c *Call) (string, error) {
	start, end := c.Int("Start"), c.Int("End")
	limit := c.Limits().MaxLoopIterations
	n := 0
	for i := start; i < end; i++ {
		if n == limit {
			c.Warn(fmt.Sprintf("loop stopped after %d iterations", limit))
			break
		}
		if err := c.run.checkpoint(); err != nil {
			return "", err
		}
		c.Set(workflow.PortIndex, value.Int(i))
		if err := c.Follow(workflow.PortLoop); err != nil {
			return "", err
		}
		n++
	}
	return workflow.PortDone, nil
}

func whileLoop(c *Call) (string, error) {
	limit := c.Limits().MaxLoopIterations
	for n := 0; ; n++ {
		if err := c.run.checkpoint(); err != nil {
			return "", err
		}
		c.Refresh()
		if !c.Bool("Condition") {
			break
		}
		if n == limit {
			c.Warn(fmt.Sprintf("loop stopped after %d iterations", limit))
			break
		}
		if err := c.Follow(workflow.PortLoop); err != nil {
			return "", err
		}
	}
	return workflow.PortDone, nil
}

// forLoopAsync runs the first iteration immediately and waits for a
// Continue signal before each later one. Control arriving on the Continue
// input releases the wait and ends that path.
func forLoopAsync(c *Call) (string, error) {
	if c.Entry() == workflow.PortContinue {
		c.run.Continue(c.node.ID)
		return "", nil
	}

	start, end := c.Int("Start"), c.Int("End")
	limit := c.Limits().MaxLoopIterations
	n := 0
	for i := start; i < end; i++ {
		if n == limit {
			c.Warn(fmt.Sprintf("loop stopped after %d iterations", limit))
			break
		}
		if n > 0 {
			if err := c.AwaitSignal(); err != nil {
				return "", err
			}
		}
		if err := c.run.checkpoint(); err != nil {
			return "", err
		}
		c.Set(workflow.PortIndex, value.Int(i))
		if err := c.Follow(workflow.PortLoop); err != nil {
			return "", err
		}
		n++
	}
	return workflow.PortDone, nil
}

func waitForCondition(c *Call) (string, error) {
	interval := millis(c.Int("Poll Interval (ms)"))
	timeout := millis(c.Int("Timeout (ms)"))
	ok, err := c.PollUntil(interval, timeout, func() bool {
		c.Refresh()
		return c.Bool("Condition")
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return workflow.PortTimedOut, nil
	}
	return workflow.PortNext, nil
}

func delay(c *Call) (string, error) {
	if err := c.Sleep(millis(c.Int("Duration (ms)"))); err != nil {
		return "", err
	}
	return workflow.PortNext, nil
}

func millis(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
