package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dshills/nodeflow/pkg/capability"
	"github.com/dshills/nodeflow/pkg/execution"
	"github.com/dshills/nodeflow/pkg/storage"
	"github.com/dshills/nodeflow/pkg/telemetry"
)

// engineSetup describes the collaborators of one CLI engine
type engineSetup struct {
	config Config
	// screen overrides config screen.image
	screen string
	stdin  io.Reader
	stdout io.Writer
	logger *slog.Logger
	// observers receive every run event
	observers []execution.Observer
}

// cliEngine is an engine together with the resources it holds open
type cliEngine struct {
	*execution.Engine
	history *storage.SQLiteExecutionRepository
	closers []func(context.Context) error
}

// Close releases the history database and flushes spans
func (e *cliEngine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var first error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// newEngine wires run history, credentials, capabilities and tracing into
// an engine
func newEngine(ctx context.Context, setup engineSetup) (*cliEngine, error) {
	logger := setup.logger
	if logger == nil {
		logger = slog.Default()
	}

	caps, err := buildCapabilities(setup, logger)
	if err != nil {
		return nil, err
	}

	history, err := historyRepository()
	if err != nil {
		return nil, err
	}
	e := &cliEngine{history: history}
	e.closers = append(e.closers, func(context.Context) error { return history.Close() })

	opts := []execution.Option{
		execution.WithLogger(logger),
		execution.WithCapabilities(caps),
		execution.WithRepository(history),
		execution.WithVariableStore(history),
		execution.WithLimits(setup.config.Limits()),
	}
	for _, o := range setup.observers {
		opts = append(opts, execution.WithObserver(o))
	}

	if setup.config.Tracing.Enabled {
		tp, err := telemetry.NewProvider(ctx, setup.config.Tracing.Endpoint)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		e.closers = append(e.closers, tp.Shutdown)
		tracing := telemetry.NewTracingHandler(tp.Tracer(telemetry.TracerName))
		opts = append(opts, execution.WithObserver(tracing.Observer()))
	}

	e.Engine = execution.NewEngine(opts...)
	return e, nil
}

// buildCapabilities creates the default collaborators from the config
func buildCapabilities(setup engineSetup, logger *slog.Logger) (capability.Set, error) {
	cfg := setup.config

	files, err := capability.NewOSFiles(cfg.Files.Root)
	if err != nil {
		return capability.Set{}, err
	}

	httpConfig := capability.HTTPConfig{
		Timeout: time.Duration(cfg.HTTP.TimeoutMS) * time.Millisecond,
	}
	if cfg.HTTP.Credential != "" {
		httpConfig.Credentials = storage.NewKeyringCredentialStore(logger)
		httpConfig.CredentialKey = cfg.HTTP.Credential
	}

	caps := capability.Set{
		Shell:      &capability.OSShell{},
		HTTP:       capability.NewHTTPClient(httpConfig),
		Files:      files,
		CaptureDir: GetCapturesDir(),
	}
	if setup.stdin != nil {
		caps.Console = capability.NewLineConsole(setup.stdin, setup.stdout)
	}

	screen := setup.screen
	if screen == "" {
		screen = cfg.Screen.Image
	}
	if screen != "" {
		s, err := capability.LoadImageScreen(screen, 1)
		if err != nil {
			return capability.Set{}, fmt.Errorf("screen %s: %w", screen, err)
		}
		caps.Screen = s
	}
	return caps, nil
}
