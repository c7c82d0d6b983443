package capability

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
)

// OSShell runs commands with os/exec.
type OSShell struct {
	// Dir is the working directory of started processes; empty means the current one.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

// Run executes command and collects its combined output.
func (s *OSShell) Run(ctx context.Context, command string, args []string) (CommandResult, error) {
	if command == "" {
		return CommandResult{ExitCode: -1}, fmt.Errorf("command cannot be empty")
	}
	cmd := exec.CommandContext(ctx, command, args...)
	s.prepare(cmd)

	out, err := cmd.CombinedOutput()
	result := CommandResult{Output: string(out)}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, fmt.Errorf("command %s exited with code %d", command, result.ExitCode)
		}
		result.ExitCode = -1
		return result, fmt.Errorf("failed to run %s: %w", command, err)
	}
	return result, nil
}

// Launch starts path detached from the run. The process is reaped in the background.
func (s *OSShell) Launch(_ context.Context, path string, args []string) error {
	if path == "" {
		return fmt.Errorf("application path cannot be empty")
	}
	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" && len(args) == 0 {
		cmd = exec.Command("open", "-a", path)
	} else {
		cmd = exec.Command(path, args...)
	}
	s.prepare(cmd)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch %s: %w", path, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Close kills every process called name.
func (s *OSShell) Close(ctx context.Context, name string) error {
	if name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "taskkill", "/IM", name, "/F")
	} else {
		cmd = exec.CommandContext(ctx, "pkill", "-x", name)
	}
	s.prepare(cmd)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to close %s: %w (%s)", name, err, out)
	}
	return nil
}

func (s *OSShell) prepare(cmd *exec.Cmd) {
	cmd.Dir = s.Dir
	if len(s.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.Env...)
	}
}
