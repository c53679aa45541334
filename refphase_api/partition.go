package refphase_api

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// SplitChromosomes writes the records of every target chromosome to <outDir>/<label>_<chrom>.vcf.gz
// One partition is returned per target in target order. Targets without records get no file.
func SplitChromosomes(in string, outDir string, label string, chroms []string) ([]ChromosomePartition, error) {
	reader, err := OpenVcf(in)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	partitions := make([]ChromosomePartition, len(chroms))
	lookup := map[string]int{}
	for i, chrom := range chroms {
		partitions[i] = ChromosomePartition{
			Chrom: chrom,
			Path:  filepath.Join(outDir, label+"_"+chrom+".vcf.gz"),
		}
		lookup[chrom] = i
	}

	writers := make([]*VcfWriter, len(chroms))
	abort := func() {
		for _, writer := range writers {
			if writer != nil {
				writer.Abort()
			}
		}
	}

	for {
		variant, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			abort()
			return nil, errors.Wrapf(err, "failed to read %s", in)
		}

		i, ok := lookup[variant.Chromosome]
		if !ok {
			continue
		}
		if writers[i] == nil {
			writer, err := CreateVcf(partitions[i].Path)
			if err != nil {
				abort()
				return nil, err
			}
			writers[i] = writer
			if err := writer.WriteHeader(reader.Header); err != nil {
				abort()
				return nil, errors.Wrapf(err, "failed to write the header of %s", partitions[i].Path)
			}
		}
		if err := writers[i].Write(variant); err != nil {
			abort()
			return nil, errors.Wrapf(err, "failed to write %s", partitions[i].Path)
		}
		partitions[i].Count++
	}

	for i, writer := range writers {
		if writer == nil {
			// stale partitions of an earlier run must not survive
			if err := removeIfExists(partitions[i].Path); err != nil {
				abort()
				return nil, err
			}
			continue
		}
		writers[i] = nil
		if err := writer.Close(); err != nil {
			abort()
			return nil, err
		}
	}

	return partitions, nil
}

// Partition splits the genotype VCF over chr1..chr22 and indexes every retained partition
// Only the retained partitions are returned, in chromosome order
func (p *Pipeline) Partition(ctx context.Context) ([]ChromosomePartition, error) {
	run := p.run
	partitions, err := SplitChromosomes(run.GenotypeVcf(), run.PhasingDir(), run.Label, TargetChromosomes())
	if err != nil {
		return nil, err
	}

	logFile, err := os.Create(filepath.Join(run.PhasingDir(), run.Label+"_index.log"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the index log")
	}
	defer logFile.Close()

	retained := []ChromosomePartition{}
	for _, part := range partitions {
		if !part.Retained() {
			continue
		}
		indexed, err := p.indexPartition(ctx, part, logFile)
		if err != nil {
			return nil, err
		}
		retained = append(retained, indexed)
	}

	p.logger.Printf("%d chromosome VCFs are outputted with variants", len(retained))
	if len(retained) == 0 {
		return nil, errors.Errorf("no variants found on chr1 to chr22 in %s", run.GenotypeVcf())
	}
	return retained, nil
}

// indexPartition creates the CSI index the phasing engine needs for its target
func (p *Pipeline) indexPartition(ctx context.Context, part ChromosomePartition, log io.Writer) (ChromosomePartition, error) {
	index := part.Path + ".csi"
	if err := removeIfExists(index); err != nil {
		return part, err
	}

	cmd := Command{Name: p.config.Tools.Bcftools, Args: []string{"index", "-f", part.Path}}
	result := p.runner.Run(ctx, "index "+part.Chrom, cmd, log)
	RequireOutputs(&result, index)
	if !result.Ok() {
		return part, &StageError{Result: result}
	}

	part.Index = index
	return part, nil
}
