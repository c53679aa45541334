package refphase_api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// The amount of stderr kept in a StageResult
const stderrTailSize = 4096

// A command line of an external tool
type Command struct {
	Name string
	Args []string
}

// String renders the command so it can be pasted into a shell
func (cmd Command) String() string {
	words := []string{shellQuote(cmd.Name)}
	for _, arg := range cmd.Args {
		words = append(words, shellQuote(arg))
	}
	return strings.Join(words, " ")
}

func shellQuote(word string) string {
	if word == "" {
		return "''"
	}
	if strings.IndexFunc(word, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r))
	}) < 0 {
		return word
	}
	return "'" + strings.ReplaceAll(word, "'", `'"'"'`) + "'"
}

// The result of one external invocation: its exit status, the tail of its stderr,
// the outputs it was expected to produce and the combined verdict in Err
type StageResult struct {
	Stage    string
	Command  Command
	ExitCode int
	Stderr   string
	Outputs  []string
	Err      error
}

func (result StageResult) Ok() bool {
	return result.Err == nil
}

// A Runner executes external commands, writing their stdout and stderr to log
type Runner interface {
	Run(ctx context.Context, stage string, cmd Command, log io.Writer) StageResult
}

// ExecRunner runs commands as operating system processes
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, stage string, cmd Command, log io.Writer) StageResult {
	result := StageResult{Stage: stage, Command: cmd}
	if log == nil {
		log = io.Discard
	}
	output := &syncWriter{w: log}
	stderr := &tailBuffer{limit: stderrTailSize}

	process := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	process.Stdout = output
	process.Stderr = io.MultiWriter(output, stderr)

	err := process.Run()
	result.Stderr = stderr.String()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
		}
		result.Err = errors.Wrapf(err, "%s exited abnormally", cmd.Name)
	}
	return result
}

// RequireOutputs records the expected outputs of the invocation and marks it as failed
// when one of them does not exist
func RequireOutputs(result *StageResult, paths ...string) {
	result.Outputs = append(result.Outputs, paths...)
	missing := []string{}
	for _, path := range paths {
		if !fileExists(path) {
			missing = append(missing, path)
		}
	}
	if len(missing) > 0 && result.Err == nil {
		result.Err = &MissingOutputError{Stage: result.Stage, Paths: missing}
	}
}

// WriteScript writes a bash script reproducing the given invocations
func WriteScript(path string, runID string, cmds ...Command) error {
	var script bytes.Buffer
	fmt.Fprintln(&script, "#!/bin/bash")
	fmt.Fprintf(&script, "# generated by refphase (run %s) on %s\n", runID, time.Now().Format(time.RFC3339))
	fmt.Fprintln(&script, "set -eux")
	fmt.Fprintln(&script)
	for _, cmd := range cmds {
		fmt.Fprintln(&script, cmd.String())
	}
	if err := os.WriteFile(path, script.Bytes(), 0755); err != nil {
		return errors.Wrapf(err, "failed to write the script %s", path)
	}
	return nil
}

// fileExists reports whether path is an existing regular file
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// removeIfExists removes the file at path, a missing file is not an error
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove %s", path)
	}
	return nil
}

// syncWriter serializes the writes of the stdout and stderr copiers of a process
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if len(b.data) > b.limit {
		b.data = b.data[len(b.data)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return strings.TrimSpace(string(b.data))
}
