// Package cgroups is the command-execution collaborator (§6): it spawns
// publisher lifecycle commands and enforces their timeout. The real
// production implementation additionally confines each invocation to a
// cgroup that limits CPU/memory; that process-supervision code is
// explicitly out of scope for this orchestrator (§1 Non-goals) so this
// package exposes only the interface the orchestrator drives plus a
// plain os/exec-based default.
package cgroups

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// StartRequest describes one lifecycle command invocation (§6:
// start_extension_command).
type StartRequest struct {
	Name    string // handler full name, used for cgroup scoping
	Command string
	Cwd     string
	Timeout time.Duration
	Env     []string
	Stdout  string // path to a temp file the output is also copied into
	Stderr  string
}

// Executor runs lifecycle commands and manages the per-handler cgroup.
// Implementations must enforce Timeout themselves; the caller does not
// apply any timeout of its own.
type Executor interface {
	Start(ctx context.Context, req StartRequest) (mergedOutput string, err error)
	CreateCgroup(fullName string) error
	RemoveCgroup(fullName string) error
}

// ShellExecutor is the default Executor: it runs the command through
// /bin/sh -c (the manifest command is already a full shell invocation) and
// does not itself apply any resource limiting.
type ShellExecutor struct{}

func New() ShellExecutor { return ShellExecutor{} }

func (ShellExecutor) CreateCgroup(fullName string) error { return nil }
func (ShellExecutor) RemoveCgroup(fullName string) error { return nil }

// Start spawns req.Command with a bounded context and captures merged
// stdout/stderr both in memory (returned) and, when set, to Stdout/Stderr
// files so a human can inspect a failed run after the fact.
func (ShellExecutor) Start(ctx context.Context, req StartRequest) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", req.Command)
	cmd.Dir = req.Cwd
	cmd.Env = req.Env

	var merged bytes.Buffer
	if req.Stdout != "" {
		if f, err := os.Create(req.Stdout); err == nil {
			cmd.Stdout = io2(f, &merged)
			defer f.Close()
		} else {
			cmd.Stdout = &merged
		}
	} else {
		cmd.Stdout = &merged
	}
	if req.Stderr != "" {
		if f, err := os.Create(req.Stderr); err == nil {
			cmd.Stderr = io2(f, &merged)
			defer f.Close()
		} else {
			cmd.Stderr = &merged
		}
	} else {
		cmd.Stderr = &merged
	}

	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return merged.String(), fmt.Errorf("command %q timed out after %s", req.Name, req.Timeout)
		}
		return merged.String(), err
	}
	return merged.String(), nil
}

// io2 tees writes to both a destination file and the in-memory buffer.
func io2(f *os.File, buf *bytes.Buffer) *teeWriter {
	return &teeWriter{f: f, buf: buf}
}

type teeWriter struct {
	f   *os.File
	buf *bytes.Buffer
}

func (t *teeWriter) Write(p []byte) (int, error) {
	t.buf.Write(p)
	return t.f.Write(p)
}
