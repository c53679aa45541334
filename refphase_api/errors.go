package refphase_api

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Sentinels matching the error categories of the pipeline
var (
	ErrConfig        = errors.New("configuration error")
	ErrMissingInput  = errors.New("missing input")
	ErrStageFailed   = errors.New("stage failed")
	ErrMissingOutput = errors.New("missing output")
)

// A ConfigError reports a missing, invalid or conflicting option
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrConfig, e.Option, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// A MissingInputError lists the input files that could not be found
type MissingInputError struct {
	Option string
	Paths  []string

	// The reference panel chromosomes without a complete BCF and index pair
	Chromosomes []string
}

func (e *MissingInputError) Error() string {
	msg := fmt.Sprintf("%v for %s: %s", ErrMissingInput, e.Option, strings.Join(e.Paths, ", "))
	if len(e.Chromosomes) > 0 {
		msg += fmt.Sprintf(" (incomplete chromosomes: %s)", strings.Join(e.Chromosomes, ", "))
	}
	return msg
}

func (e *MissingInputError) Unwrap() error { return ErrMissingInput }

// A MissingOutputError lists the expected outputs of a stage that do not exist
type MissingOutputError struct {
	Stage string
	Paths []string
}

func (e *MissingOutputError) Error() string {
	return fmt.Sprintf("%v of %s: %s", ErrMissingOutput, e.Stage, strings.Join(e.Paths, ", "))
}

func (e *MissingOutputError) Unwrap() error { return ErrMissingOutput }

// A StageError carries the result of a failed external invocation
type StageError struct {
	Result StageResult
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Result.Stage)
	if e.Result.ExitCode != 0 {
		msg += fmt.Sprintf(" with exit status %d", e.Result.ExitCode)
	}
	if e.Result.Err != nil {
		msg += ": " + e.Result.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() error { return e.Result.Err }

func (e *StageError) Is(target error) bool { return target == ErrStageFailed }
