package refphase_api

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// The YAML record of a finished run
type RunSummary struct {
	RunID       string              `yaml:"run_id"`
	Label       string              `yaml:"label"`
	Mode        Mode                `yaml:"mode"`
	Genome      Genome              `yaml:"genome"`
	GenotypeVcf string              `yaml:"genotype_vcf"`
	Chromosomes []ChromosomeSummary `yaml:"chromosomes"`
	PhasedVcf   string              `yaml:"phased_vcf"`
	Variants    int                 `yaml:"variants"`
}

type ChromosomeSummary struct {
	Chrom     string `yaml:"chrom"`
	Variants  int    `yaml:"variants"`
	Partition string `yaml:"partition"`
	Phased    string `yaml:"phased"`
}

// NewRunSummary collects the handoff values of all stages of a run
func NewRunSummary(run *PipelineRun, partitions []ChromosomePartition, tasks []PhasingTask, variants int) RunSummary {
	phased := map[string]string{}
	for _, task := range tasks {
		phased[task.Chrom] = task.Output()
	}

	summary := RunSummary{
		RunID:       run.ID,
		Label:       run.Label,
		Mode:        run.Mode,
		Genome:      run.Genome,
		GenotypeVcf: run.GenotypeVcf(),
		Chromosomes: []ChromosomeSummary{},
		PhasedVcf:   run.PhasedVcf(),
		Variants:    variants,
	}
	for _, part := range partitions {
		summary.Chromosomes = append(summary.Chromosomes, ChromosomeSummary{
			Chrom:     part.Chrom,
			Variants:  part.Count,
			Partition: part.Path,
			Phased:    phased[part.Chrom],
		})
	}
	return summary
}

func WriteSummary(path string, summary RunSummary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return errors.Wrap(err, "failed to encode the run summary")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write the run summary")
	}
	return nil
}
