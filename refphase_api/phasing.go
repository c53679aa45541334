package refphase_api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// BuildPhasingTasks pairs every retained partition with the reference panel file of its chromosome
func BuildPhasingTasks(partitions []ChromosomePartition, panelDir string, phasingDir string, label string) ([]PhasingTask, error) {
	panel := map[string]ReferencePanelEntry{}
	for _, entry := range ReferencePanel(panelDir) {
		panel[entry.Chrom] = entry
	}

	tasks := []PhasingTask{}
	for _, part := range partitions {
		if !part.Retained() {
			return nil, errors.Errorf("partition %s has no variants and cannot be phased", part.Chrom)
		}
		if part.Index == "" {
			return nil, errors.Errorf("partition %s is not indexed", part.Chrom)
		}
		entry, ok := panel[part.Chrom]
		if !ok {
			return nil, errors.Errorf("no reference panel for chromosome %s", part.Chrom)
		}
		tasks = append(tasks, PhasingTask{
			Chrom:     part.Chrom,
			Target:    part.Path,
			Reference: entry.Bcf,
			OutPrefix: filepath.Join(phasingDir, fmt.Sprintf("%s_%s.phased", label, part.Chrom)),
		})
	}
	return tasks, nil
}

func (p *Pipeline) phasingCommand(task PhasingTask) Command {
	args := []string{
		"--numThreads", strconv.Itoa(p.config.Phasing.Threads),
		"--vcfTarget", task.Target,
		"--vcfRef", task.Reference,
		"--geneticMapFile", p.run.GeneticMap,
		"--outPrefix", task.OutPrefix,
		"--vcfOutFormat", "z",
	}
	args = append(args, p.config.Phasing.ExtraArgs...)
	return Command{Name: p.run.Eagle, Args: args}
}

// Phase runs the phasing engine once per task, at most run.Cores at a time
// It returns after every invocation finished. A failed invocation never leaves a file at
// its expected output path.
func (p *Pipeline) Phase(ctx context.Context, tasks []PhasingTask) ([]PhasingOutcome, error) {
	dir := p.run.PhasingDir()
	cmds := make([]Command, len(tasks))
	for i, task := range tasks {
		cmds[i] = p.phasingCommand(task)
		if err := removeIfExists(task.Output()); err != nil {
			return nil, err
		}
	}

	if err := WriteScript(filepath.Join(dir, p.run.Label+"_run_phasing.sh"), p.run.ID, cmds...); err != nil {
		return nil, err
	}
	logFile, err := os.Create(filepath.Join(dir, p.run.Label+"_phasing.log"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the phasing log")
	}
	defer logFile.Close()
	phasingLog := &taskLog{w: logFile}

	workers := p.run.Cores
	if workers < 1 {
		workers = 1
	}

	outcomes := make([]PhasingOutcome, len(tasks))
	var group errgroup.Group
	group.SetLimit(workers)

	for i, task := range tasks {
		i, task := i, task
		group.Go(func() error {
			var output bytes.Buffer
			result := p.runner.Run(ctx, "phasing "+task.Chrom, cmds[i], &output)
			RequireOutputs(&result, task.Output())
			if !result.Ok() {
				if err := removeIfExists(task.Output()); err != nil {
					p.logger.Print(err)
				}
			}
			phasingLog.write(task.Chrom, output.Bytes())

			outcomes[i] = PhasingOutcome{Task: task, Result: result}
			return nil
		})
	}
	group.Wait()

	if err := phasingLog.Err(); err != nil {
		return outcomes, errors.Wrapf(err, "failed to write the phasing log %s", logFile.Name())
	}
	return outcomes, nil
}

// taskLog appends the output of concurrent invocations to one log, one block per chromosome
type taskLog struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

func (l *taskLog) write(chrom string, output []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return
	}
	if _, err := fmt.Fprintf(l.w, "==> %s <==\n", chrom); err != nil {
		l.err = err
		return
	}
	_, l.err = l.w.Write(output)
}

// Err returns the first write error
func (l *taskLog) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
