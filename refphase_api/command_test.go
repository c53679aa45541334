package refphase_api

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandString(t *testing.T) {
	cmd := Command{
		Name: "/opt/eagle/eagle",
		Args: []string{"--vcfTarget", "/data/my run/pt1_chr1.vcf.gz", "--note", "it's", "--empty", ""},
	}
	assert.Equal(t,
		`/opt/eagle/eagle --vcfTarget '/data/my run/pt1_chr1.vcf.gz' --note 'it'"'"'s' --empty ''`,
		cmd.String(),
	)
}

func TestExecRunnerSuccess(t *testing.T) {
	var log bytes.Buffer
	cmd := Command{Name: "sh", Args: []string{"-c", "echo to-stdout; echo to-stderr >&2"}}

	result := ExecRunner{}.Run(context.Background(), "echo", cmd, &log)

	require.True(t, result.Ok())
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "to-stderr", result.Stderr)
	assert.Contains(t, log.String(), "to-stdout")
	assert.Contains(t, log.String(), "to-stderr")
}

func TestExecRunnerFailure(t *testing.T) {
	cmd := Command{Name: "sh", Args: []string{"-c", "echo broken pipe >&2; exit 3"}}

	result := ExecRunner{}.Run(context.Background(), "broken", cmd, nil)

	assert.False(t, result.Ok())
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "broken pipe", result.Stderr)

	err := &StageError{Result: result}
	assert.True(t, errors.Is(err, ErrStageFailed))
	assert.Contains(t, err.Error(), "exit status 3")
}

func TestExecRunnerMissingBinary(t *testing.T) {
	cmd := Command{Name: filepath.Join(t.TempDir(), "no-such-tool")}

	result := ExecRunner{}.Run(context.Background(), "missing", cmd, nil)

	assert.False(t, result.Ok())
	assert.Equal(t, -1, result.ExitCode)
}

func TestTailBufferKeepsEnd(t *testing.T) {
	buffer := &tailBuffer{limit: 8}
	buffer.Write([]byte("0123456789"))
	buffer.Write([]byte("abc"))
	assert.Equal(t, "56789abc", buffer.String())
}

func TestRequireOutputs(t *testing.T) {
	dir := t.TempDir()
	present := touch(t, filepath.Join(dir, "present.vcf.gz"))
	absent := filepath.Join(dir, "absent.vcf.gz")

	result := StageResult{Stage: "phasing chr1"}
	RequireOutputs(&result, present)
	assert.True(t, result.Ok())

	RequireOutputs(&result, absent)
	assert.False(t, result.Ok())
	assert.True(t, errors.Is(result.Err, ErrMissingOutput))
	assert.Equal(t, []string{present, absent}, result.Outputs)

	var missing *MissingOutputError
	require.True(t, errors.As(result.Err, &missing))
	assert.Equal(t, []string{absent}, missing.Paths)
}

func TestRequireOutputsKeepsProcessError(t *testing.T) {
	processErr := errors.New("killed")
	result := StageResult{Stage: "pileup", Err: processErr}
	RequireOutputs(&result, filepath.Join(t.TempDir(), "absent"))
	assert.Equal(t, processErr, result.Err)
}

func TestRequireOutputsRejectsDirectory(t *testing.T) {
	result := StageResult{Stage: "pileup"}
	RequireOutputs(&result, t.TempDir())
	assert.False(t, result.Ok())
}

func TestWriteScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_phasing.sh")
	cmds := []Command{
		{Name: "eagle", Args: []string{"--outPrefix", "out/pt1_chr1.phased"}},
		{Name: "eagle", Args: []string{"--outPrefix", "out/pt1_chr2.phased"}},
	}

	require.NoError(t, WriteScript(path, "run-42", cmds...))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "#!/bin/bash", lines[0])
	assert.Contains(t, lines[1], "run-42")
	assert.Equal(t, "set -eux", lines[2])
	assert.Equal(t, "eagle --outPrefix out/pt1_chr1.phased", lines[4])
	assert.Equal(t, "eagle --outPrefix out/pt1_chr2.phased", lines[5])
}
