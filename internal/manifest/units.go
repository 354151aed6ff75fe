package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/risetechapps/jobchain/job"
)

// factory builds a fresh unit for every run of a step.
type factory func() job.Unit

// builtin parses a step's parameters once and returns its factory.
type builtin func(with map[string]any, logger *slog.Logger) (factory, error)

var builtins = map[string]builtin{
	"log":   newLog,
	"sleep": newSleep,
	"fail":  newFail,
	"stop":  newStop,
	"exec":  newExec,
}

// Units returns the names of the built-in units.
func Units() []string {
	return []string{"log", "sleep", "fail", "stop", "exec"}
}

func stringParam(with map[string]any, key string, required bool) (string, error) {
	v, ok := with[key]
	if !ok {
		if required {
			return "", fmt.Errorf("missing %q", key)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q must be a string, got %T", key, v)
	}
	return s, nil
}

// logUnit writes its message and the passable arguments.
type logUnit struct {
	message string
	logger  *slog.Logger
}

func newLog(with map[string]any, logger *slog.Logger) (factory, error) {
	msg, err := stringParam(with, "message", false)
	if err != nil {
		return nil, err
	}
	if msg == "" {
		msg = "log"
	}
	return func() job.Unit { return &logUnit{message: msg, logger: logger} }, nil
}

func (u *logUnit) Handle(ctx context.Context, args job.Args) (any, error) {
	u.logger.InfoContext(ctx, u.message, slog.Any("args", []any(args)))
	return nil, nil
}

// sleepUnit waits, giving up when the context ends.
type sleepUnit struct{ d time.Duration }

func newSleep(with map[string]any, _ *slog.Logger) (factory, error) {
	s, err := stringParam(with, "duration", true)
	if err != nil {
		return nil, err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("duration: %w", err)
	}
	return func() job.Unit { return &sleepUnit{d: d} }, nil
}

func (u *sleepUnit) Handle(ctx context.Context, _ job.Args) (any, error) {
	t := time.NewTimer(u.d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// failUnit always fails. Its failure hook logs the compensation message
// when one is configured.
type failUnit struct {
	message    string
	compensate string
	logger     *slog.Logger
}

func newFail(with map[string]any, logger *slog.Logger) (factory, error) {
	msg, err := stringParam(with, "message", false)
	if err != nil {
		return nil, err
	}
	if msg == "" {
		msg = "failed on purpose"
	}
	comp, err := stringParam(with, "compensate", false)
	if err != nil {
		return nil, err
	}
	return func() job.Unit { return &failUnit{message: msg, compensate: comp, logger: logger} }, nil
}

func (u *failUnit) Handle(context.Context, job.Args) (any, error) {
	return nil, errors.New(u.message)
}

func (u *failUnit) Failed(ctx context.Context, cause error) error {
	if u.compensate != "" {
		u.logger.WarnContext(ctx, u.compensate, slog.String("cause", cause.Error()))
	}
	return nil
}

// stopUnit halts the chain successfully.
type stopUnit struct{}

func newStop(map[string]any, *slog.Logger) (factory, error) {
	return func() job.Unit { return stopUnit{} }, nil
}

func (stopUnit) Handle(context.Context, job.Args) (any, error) { return false, nil }

// execUnit runs a command. A non-zero exit fails the step.
type execUnit struct {
	command string
	args    []string
	logger  *slog.Logger
}

func newExec(with map[string]any, logger *slog.Logger) (factory, error) {
	cmd, err := stringParam(with, "command", true)
	if err != nil {
		return nil, err
	}
	var args []string
	if raw, ok := with["args"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf(`"args" must be a list, got %T`, raw)
		}
		for _, a := range list {
			args = append(args, fmt.Sprint(a))
		}
	}
	return func() job.Unit { return &execUnit{command: cmd, args: args, logger: logger} }, nil
}

func (u *execUnit) Handle(ctx context.Context, _ job.Args) (any, error) {
	out, err := exec.CommandContext(ctx, u.command, u.args...).CombinedOutput()
	u.logger.InfoContext(ctx, "command finished",
		slog.String("command", u.command),
		slog.String("output", strings.TrimSpace(string(out))),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", u.command, err)
	}
	return nil, nil
}
