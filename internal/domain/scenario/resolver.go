package scenario

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/DebugOS/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/types"
	"github.com/GriffinCanCode/DebugOS/backend/internal/shared/utils"
)

// Locator maps an adapter name to the binary that speaks the debug adapter
// protocol for it.
type Locator interface {
	AdapterCommand(adapter string) (command string, args []string, err error)
}

// BuildRunner executes a named build task before a scenario boots. Resolution
// fails when the build fails.
type BuildRunner interface {
	RunBuild(ctx context.Context, task string, taskCtx types.TaskContext, worktreeRoot string) error
}

// Resolver turns a scenario plus its task context into a concrete adapter
// binary ready to spawn.
type Resolver struct {
	locator Locator
	builder BuildRunner
	log     *logging.Logger
}

// NewResolver creates a resolver. builder may be nil when build tasks are
// not supported.
func NewResolver(locator Locator, builder BuildRunner, log *logging.Logger) *Resolver {
	return &Resolver{
		locator: locator,
		builder: builder,
		log:     log.Named("resolver"),
	}
}

// Resolve validates the scenario, runs its build task and produces the
// launch definition. Variable references in program, args, cwd and env are
// expanded against the task context.
func (r *Resolver) Resolve(ctx context.Context, sc types.DebugScenario, taskCtx types.TaskContext, worktreeRoot string) (types.DebugAdapterBinary, error) {
	if err := utils.ValidateScenario(sc.Label, sc.Adapter); err != nil {
		return types.DebugAdapterBinary{}, err
	}

	if sc.Build != "" {
		if r.builder == nil {
			return types.DebugAdapterBinary{}, fmt.Errorf("scenario %q requires build task %q but no build runner is configured", sc.Label, sc.Build)
		}
		if err := r.builder.RunBuild(ctx, sc.Build, taskCtx, worktreeRoot); err != nil {
			return types.DebugAdapterBinary{}, fmt.Errorf("build task %q failed: %w", sc.Build, err)
		}
	}

	command, args, err := r.locator.AdapterCommand(sc.Adapter)
	if err != nil {
		return types.DebugAdapterBinary{}, err
	}

	vars := taskCtx.Vars
	program := utils.ExpandVars(sc.Program, vars)
	cwd := utils.ExpandVars(sc.Cwd, vars)
	if cwd == "" {
		cwd = taskCtx.Cwd
	}
	if cwd == "" {
		cwd = worktreeRoot
	}

	env := make(map[string]string, len(taskCtx.Env)+len(sc.Env))
	for k, v := range taskCtx.Env {
		env[k] = v
	}
	for k, v := range sc.Env {
		env[k] = utils.ExpandVars(v, vars)
	}

	request := sc.Request
	if request == "" {
		request = "launch"
	}

	configuration := make(map[string]interface{}, len(sc.Config)+4)
	for k, v := range sc.Config {
		configuration[k] = v
	}
	configuration["name"] = sc.Label
	if program != "" {
		configuration["program"] = program
	}
	if scArgs := utils.ExpandAll(sc.Args, vars); len(scArgs) > 0 {
		configuration["args"] = scArgs
	}
	if cwd != "" {
		configuration["cwd"] = cwd
	}

	r.log.Debug("scenario resolved",
		zap.String("label", sc.Label),
		zap.String("adapter", sc.Adapter),
		zap.String("command", command))

	return types.DebugAdapterBinary{
		Command: command,
		Args:    args,
		Env:     env,
		Cwd:     cwd,
		RequestArgs: types.StartRequest{
			Request:       request,
			Configuration: configuration,
		},
	}, nil
}

// StaticLocator is a map-backed adapter locator
type StaticLocator struct {
	mu       sync.RWMutex
	commands map[string]locatorEntry
}

type locatorEntry struct {
	command string
	args    []string
}

// NewStaticLocator creates a locator preloaded with well-known adapters
func NewStaticLocator() *StaticLocator {
	l := &StaticLocator{commands: make(map[string]locatorEntry)}
	l.Register("delve", "dlv", "dap")
	l.Register("debugpy", "python3", "-m", "debugpy.adapter")
	l.Register("lldb", "lldb-dap")
	l.Register("gdb", "gdb", "-i=dap")
	return l
}

// Register maps an adapter name to its command
func (l *StaticLocator) Register(adapter, command string, args ...string) {
	l.mu.Lock()
	l.commands[adapter] = locatorEntry{command: command, args: args}
	l.mu.Unlock()
}

// AdapterCommand returns the command for an adapter name
func (l *StaticLocator) AdapterCommand(adapter string) (string, []string, error) {
	l.mu.RLock()
	entry, ok := l.commands[adapter]
	l.mu.RUnlock()

	if !ok {
		return "", nil, fmt.Errorf("unknown debug adapter: %s", adapter)
	}
	return entry.command, append([]string(nil), entry.args...), nil
}
