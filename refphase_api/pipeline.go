package refphase_api

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
)

// Pipeline runs all stages of one PipelineRun in order
// Stages hand their results to the next one as values, the filesystem is only
// used at the boundary with the external tools
type Pipeline struct {
	run    *PipelineRun
	config *Config
	runner Runner
	logger *log.Logger
}

// NewPipeline creates a pipeline. A nil runner runs real processes, a nil logger logs to stderr.
func NewPipeline(run *PipelineRun, config *Config, runner Runner, logger *log.Logger) *Pipeline {
	if config == nil {
		config = &Config{}
		config.defineMissing()
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[refphase] ", log.Ldate|log.Ltime)
	}
	return &Pipeline{run: run, config: config, runner: runner, logger: logger}
}

// timed logs the start, the end and the elapsed time of a stage
func (p *Pipeline) timed(stage string, f func() error) error {
	p.logger.Printf("%s starts ...", stage)
	start := time.Now()
	if err := f(); err != nil {
		p.logger.Printf("%s failed after %v", stage, time.Since(start).Round(time.Millisecond))
		return errors.Wrap(err, stage)
	}
	p.logger.Printf("%s completed in %v", stage, time.Since(start).Round(time.Millisecond))
	return nil
}

// Run executes preflight, pileup, genotype annotation, partitioning, phasing and merging
func (p *Pipeline) Run(ctx context.Context) error {
	run := p.run
	p.logger.Printf("refphase run %s starts for '%s'", run.ID, run.Label)

	if err := p.timed("preflight", func() error {
		return Preflight(run, p.config, p.logger)
	}); err != nil {
		return err
	}
	p.logger.Printf("run in '%s' mode (genome version '%s')", run.Mode, run.Genome)

	// the final VCF and the summary of an earlier run only stay when this run completes
	for _, path := range []string{run.PhasedVcf(), run.SummaryFile()} {
		if err := removeIfExists(path); err != nil {
			return err
		}
	}

	var pileupVcf string
	if err := p.timed("pileup", func() (err error) {
		pileupVcf, err = p.Pileup(ctx)
		return err
	}); err != nil {
		return err
	}
	p.logger.Printf("pileup VCF is '%s'", pileupVcf)

	if err := os.MkdirAll(run.PhasingDir(), 0755); err != nil {
		return errors.Wrap(err, "failed to create the phasing directory")
	}

	if err := p.timed("add genotypes", func() error {
		n, err := AddGenotype(pileupVcf, run.GenotypeVcf(), GenotypeOptions{
			Sample:    run.Label,
			ChrPrefix: true,
			Sort:      true,
			Unique:    true,
		})
		if err == nil {
			p.logger.Printf("%d sites written to '%s'", n, run.GenotypeVcf())
		}
		return err
	}); err != nil {
		return err
	}

	var partitions []ChromosomePartition
	if err := p.timed("split VCF by chromosomes", func() (err error) {
		partitions, err = p.Partition(ctx)
		return err
	}); err != nil {
		return err
	}

	tasks, err := BuildPhasingTasks(partitions, run.PanelDir, run.PhasingDir(), run.Label)
	if err != nil {
		return err
	}

	if err := p.timed("reference phasing", func() error {
		outcomes, err := p.Phase(ctx, tasks)
		if err != nil {
			return err
		}
		for _, outcome := range outcomes {
			if !outcome.Result.Ok() {
				p.logger.Printf("Warning: phasing of %s failed: %v", outcome.Task.Chrom, outcome.Result.Err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	p.logger.Printf("phased VCFs are in dir '%s'", run.PhasingDir())

	var variants int
	if err := p.timed("merge phased VCFs", func() (err error) {
		variants, err = Merge(NewMergeSet(tasks), run.PhasedVcf())
		return err
	}); err != nil {
		return err
	}
	p.logger.Printf("merged VCF is '%s'", run.PhasedVcf())

	if err := WriteSummary(run.SummaryFile(), NewRunSummary(run, partitions, tasks, variants)); err != nil {
		return err
	}

	p.logger.Print("All Done!")
	return nil
}
