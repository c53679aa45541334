package refphase_api

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

var pileupHeader = []string{
	"##fileformat=VCFv4.2",
	"##source=cellSNP_v1.2.3",
	"##contig=<ID=1,length=248956422>",
	"##contig=<ID=5,length=181538259>",
	"##contig=<ID=X,length=156040895>",
	`##INFO=<ID=AD,Number=1,Type=Integer,Description="Total counts for ALT alleles">`,
	`##INFO=<ID=DP,Number=1,Type=Integer,Description="Total counts for ALT and REF alleles">`,
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO",
}

var phasedHeader = []string{
	"##fileformat=VCFv4.2",
	"##source=Eagle2",
	`##FORMAT=<ID=GT,Number=1,Type=String,Description="Phased genotype">`,
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tpt1",
}

// writeTestVcf writes the header lines and tab separated records to path
func writeTestVcf(path string, headerLines []string, records []string) error {
	header := newHeader()
	for _, line := range headerLines {
		if err := header.parse(line); err != nil {
			return err
		}
	}
	writer, err := CreateVcf(path)
	if err != nil {
		return err
	}
	if err := writer.WriteHeader(header); err != nil {
		writer.Abort()
		return err
	}
	for _, record := range records {
		variant, err := parseVariant(record)
		if err != nil {
			writer.Abort()
			return err
		}
		if err := writer.Write(variant); err != nil {
			writer.Abort()
			return err
		}
	}
	return writer.Close()
}

func readTestVcf(t *testing.T, path string) (*Header, []*Variant) {
	t.Helper()
	reader, err := OpenVcf(path)
	require.NoError(t, err)
	defer reader.Close()
	variants, err := reader.ReadAll()
	require.NoError(t, err)
	return reader.Header, variants
}

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte{}, 0644))
	return path
}

func executable(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755))
	return path
}

// newTestRun creates all inputs of a 10x run in a temporary directory
func newTestRun(t *testing.T) (*PipelineRun, *Config) {
	t.Helper()
	dir := t.TempDir()

	panelDir := filepath.Join(dir, "panel")
	for _, entry := range ReferencePanel(panelDir) {
		touch(t, entry.Bcf)
		touch(t, entry.Csi)
	}

	run := &PipelineRun{
		ID:         "test-run",
		Label:      "pt1",
		Mode:       Mode10x,
		Genome:     GenomeHg38,
		OutDir:     filepath.Join(dir, "out"),
		Sam:        touch(t, filepath.Join(dir, "possorted_genome_bam.bam")),
		Barcode:    touch(t, filepath.Join(dir, "barcodes.tsv")),
		SnpVcf:     touch(t, filepath.Join(dir, "genome1K.phase3.SNP_AF5e2.chr1toX.hg38.vcf.gz")),
		GeneticMap: touch(t, filepath.Join(dir, "genetic_map_hg38_withX.txt.gz")),
		Eagle:      executable(t, filepath.Join(dir, "eagle")),
		PanelDir:   panelDir,
		CellTag:    "CB",
		UmiTag:     "UB",
		Cores:      2,
	}

	config := &Config{Tools: ToolsConfig{
		Cellsnp:  executable(t, filepath.Join(dir, "cellsnp-lite")),
		Bcftools: executable(t, filepath.Join(dir, "bcftools")),
	}}
	config.defineMissing()

	return run, config
}

func newTestPipeline(run *PipelineRun, config *Config, runner Runner) *Pipeline {
	return NewPipeline(run, config, runner, log.New(io.Discard, "", 0))
}

// fakeRunner imitates the pileup engine, bcftools and the phasing engine
type fakeRunner struct {
	config *Config
	eagle  string

	// records written by the pileup engine
	pileupRecords []string

	// the pileup engine exits cleanly without writing its VCF
	skipPileupOutput bool

	// chromosomes for which phasing exits cleanly without writing output
	silentFailures map[string]bool

	// chromosomes for which phasing writes a partial file and exits with an error
	crashes map[string]bool

	phasingDelay time.Duration

	mu         sync.Mutex
	calls      []Command
	running    int
	maxRunning int
}

func newFakeRunner(run *PipelineRun, config *Config, records ...string) *fakeRunner {
	return &fakeRunner{
		config:         config,
		eagle:          run.Eagle,
		pileupRecords:  records,
		silentFailures: map[string]bool{},
		crashes:        map[string]bool{},
	}
}

func (f *fakeRunner) Run(ctx context.Context, stage string, cmd Command, log io.Writer) StageResult {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	f.mu.Unlock()

	result := StageResult{Stage: stage, Command: cmd}
	switch cmd.Name {
	case f.config.Tools.Cellsnp:
		if !f.skipPileupOutput {
			out := filepath.Join(argValue(cmd.Args, "-O"), pileupVcfName)
			result.Err = writeTestVcf(out, pileupHeader, f.pileupRecords)
		}
	case f.config.Tools.Bcftools:
		target := cmd.Args[len(cmd.Args)-1]
		result.Err = os.WriteFile(target+".csi", []byte("csi"), 0644)
	case f.eagle:
		f.phase(cmd, &result)
	default:
		result.ExitCode = 127
		result.Err = errors.Errorf("%s: command not found", cmd.Name)
	}
	fmt.Fprintf(log, "%s finished\n", stage)
	return result
}

func (f *fakeRunner) phase(cmd Command, result *StageResult) {
	f.mu.Lock()
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	time.Sleep(f.phasingDelay)

	prefix := argValue(cmd.Args, "--outPrefix")
	output := prefix + ".vcf.gz"
	chrom := chromOfPrefix(prefix)

	switch {
	case f.silentFailures[chrom]:
		return
	case f.crashes[chrom]:
		os.WriteFile(output, []byte("partial"), 0644)
		result.ExitCode = 1
		result.Err = errors.New("eagle exited abnormally")
		return
	}

	data, err := os.ReadFile(argValue(cmd.Args, "--vcfTarget"))
	if err != nil {
		result.ExitCode = 1
		result.Err = err
		return
	}
	result.Err = os.WriteFile(output, data, 0644)
}

// The calls made to the given tool, in order
func (f *fakeRunner) callsTo(name string) []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := []Command{}
	for _, call := range f.calls {
		if call.Name == name {
			calls = append(calls, call)
		}
	}
	return calls
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

// chromOfPrefix extracts chrN from <dir>/<label>_chrN.phased
func chromOfPrefix(prefix string) string {
	name := strings.TrimSuffix(filepath.Base(prefix), ".phased")
	return name[strings.LastIndex(name, "_")+1:]
}

func chromosomesOf(variants []*Variant) []string {
	chroms := []string{}
	for _, variant := range variants {
		if len(chroms) == 0 || chroms[len(chroms)-1] != variant.Chromosome {
			chroms = append(chroms, variant.Chromosome)
		}
	}
	return chroms
}
