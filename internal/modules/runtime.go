package modules

//go:generate mockgen -destination=mocks/mock_runtime.go -package=mocks github.com/mattjoyce/edgeagent/internal/modules Runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"

	"github.com/mattjoyce/edgeagent/internal/log"
)

// maxStderrBytes caps the amount of stderr kept from a restart command.
const maxStderrBytes = 64 * 1024

// modulePlaceholder is substituted with the module name in restart commands.
const modulePlaceholder = "{module}"

// ErrUnknownModule is returned when a module is not configured on this device.
var ErrUnknownModule = errors.New("unknown module")

// Runtime controls the modules deployed on the device.
type Runtime interface {
	// Modules returns the configured module names in sorted order.
	Modules() []string
	// Restart restarts the named module. It returns ErrUnknownModule for
	// modules that are not configured.
	Restart(ctx context.Context, name string) error
}

// CommandRuntime restarts modules by running a configured command per module.
type CommandRuntime struct {
	commands map[string][]string
	logger   *slog.Logger
}

// NewCommandRuntime builds a runtime from module name → restart argv.
// Names are matched case-sensitively; argv elements may contain {module}.
func NewCommandRuntime(commands map[string][]string) *CommandRuntime {
	cp := make(map[string][]string, len(commands))
	for name, argv := range commands {
		cp[name] = append([]string(nil), argv...)
	}
	return &CommandRuntime{
		commands: cp,
		logger:   log.WithComponent("modules"),
	}
}

// Modules returns configured module names.
func (r *CommandRuntime) Modules() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Restart runs the module's restart command. The command is killed if ctx
// is cancelled before it exits.
func (r *CommandRuntime) Restart(ctx context.Context, name string) error {
	argv, ok := r.commands[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	if len(argv) == 0 {
		return fmt.Errorf("module %s has no restart command configured", name)
	}

	args := make([]string, len(argv))
	for i, a := range argv {
		args[i] = strings.ReplaceAll(a, modulePlaceholder, name)
	}

	logger := log.WithModule(r.logger, name)
	logger.Info("restarting module", "command", args[0])

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	stderr := &cappedBuffer{max: maxStderrBytes}
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("restart %s: %w", name, ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		logger.Warn("module restart command failed", "error", err, "stderr", msg)
		if msg != "" {
			return fmt.Errorf("restart %s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("restart %s: %w", name, err)
	}

	logger.Info("module restarted")
	return nil
}

// cappedBuffer keeps the first max bytes written and discards the rest.
// Writes always report success so the command is never failed by the cap.
type cappedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }
