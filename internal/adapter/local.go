package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// LocalOptions configures the Local adapter. It matches spec.md 6's
// recognised option set for Local: {prefix}, plus the argv this reference
// implementation actually needs to start a worker process.
type LocalOptions struct {
	Prefix string

	// Command is the argv used to start the worker process, e.g.
	// []string{"/usr/local/bin/overseer-worker"}.
	Command []string
	Dir     string
	Env     []string

	// KillGrace bounds how long Terminate waits between SIGTERM and
	// SIGKILL. Defaults to 5s.
	KillGrace time.Duration
}

// Local spawns workers as child OS processes, grounded on os/exec usage
// conventions in the retrieved reference pack.
type Local struct {
	opts LocalOptions
}

// NewLocal constructs a Local adapter.
func NewLocal(opts LocalOptions) *Local {
	if opts.KillGrace <= 0 {
		opts.KillGrace = 5 * time.Second
	}
	return &Local{opts: opts}
}

func (l *Local) Spawn(ctx context.Context) (Spawned, error) {
	if len(l.opts.Command) == 0 {
		return Spawned{}, errors.New("adapter: local: no command configured")
	}

	name := fmt.Sprintf("%s-%s", l.opts.Prefix, uuid.NewString())

	cmd := exec.CommandContext(context.Background(), l.opts.Command[0], l.opts.Command[1:]...)
	cmd.Dir = l.opts.Dir
	cmd.Env = append(append([]string{}, os.Environ()...), l.opts.Env...)
	cmd.Env = append(cmd.Env, "OVERSEER_LABOR_NAME="+name)

	if err := cmd.Start(); err != nil {
		return Spawned{}, fmt.Errorf("adapter: local: spawn %s: %w", name, err)
	}

	// Reap the process asynchronously so it never becomes a zombie;
	// liveness is observed independently via Connect's signal-0 probe,
	// not via Wait's return value.
	go func() { _ = cmd.Wait() }()

	return Spawned{Name: name, Handle: strconv.Itoa(cmd.Process.Pid)}, nil
}

func (l *Local) Terminate(ctx context.Context, handle string) error {
	pid, err := strconv.Atoi(handle)
	if err != nil {
		return fmt.Errorf("adapter: local: bad handle %q: %w", handle, err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		// Already reaped by the OS; idempotent.
		return nil
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			return nil
		}
	}

	select {
	case <-time.After(l.opts.KillGrace):
	case <-ctx.Done():
	}

	if err := proc.Signal(syscall.SIGKILL); err != nil {
		if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
			return nil
		}
	}
	return nil
}

func (l *Local) Connect(ctx context.Context, handle string) error {
	pid, err := strconv.Atoi(handle)
	if err != nil {
		return fmt.Errorf("adapter: local: bad handle %q: %w", handle, err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("adapter: local: process %d not found: %w", pid, err)
	}
	// Signal 0 performs error checking without delivering a signal: the
	// standard Unix liveness probe.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return fmt.Errorf("adapter: local: process %d unreachable: %w", pid, err)
	}
	return nil
}
