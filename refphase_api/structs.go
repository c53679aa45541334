package refphase_api

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// The number of autosomes covered by the reference panel
const NumAutosomes = 22

// The mode the pileup engine runs in
type Mode string

const (
	Mode10x      Mode = "10x"
	ModeSmartseq Mode = "smartseq"
	ModeBulk     Mode = "bulk"
)

// ParseMode converts a user supplied mode name to a Mode, ignoring case
func ParseMode(input string) (Mode, error) {
	mode := Mode(cases.Fold().String(strings.TrimSpace(input)))
	switch mode {
	case Mode10x, ModeSmartseq, ModeBulk:
		return mode, nil
	}
	return "", &ConfigError{Option: "--mode", Reason: fmt.Sprintf("invalid mode '%s', must be one of: 10x, smartseq, bulk", input)}
}

// The genome build of the genetic map
type Genome string

const (
	GenomeHg19 Genome = "hg19"
	GenomeHg38 Genome = "hg38"
)

// GenomeFromMap derives the genome build from the filename of the genetic map
func GenomeFromMap(path string) Genome {
	if strings.Contains(path, string(GenomeHg19)) {
		return GenomeHg19
	}
	return GenomeHg38
}

// The struct representing one execution of the pipeline
type PipelineRun struct {
	// Unique identifier of this execution, stamped into scripts and the summary
	ID string

	// Cohort or sample identifier, used in all output file names
	Label string

	// The pileup mode
	Mode Mode

	// The genome build, derived from the genetic map filename
	Genome Genome

	// The output root directory
	OutDir string

	// Comma separated list of alignment files
	// Mutually exclusive with SamList
	Sam string

	// A file listing one alignment file per line
	// Mutually exclusive with Sam
	SamList string

	// A file listing the cell barcodes (10x) or sample IDs (smartseq)
	Barcode string

	// The VCF file listing all candidate SNPs
	SnpVcf string

	// The genetic map used by the phasing engine
	GeneticMap string

	// Path to the phasing engine binary
	Eagle string

	// Directory containing the per chromosome reference panel BCF files
	PanelDir string

	// Cell barcode tag
	CellTag string

	// UMI tag
	UmiTag string

	// Worker budget for the pileup and phasing stages
	Cores int
}

// The directory holding the pileup output of this label
// The pileup engine writes fixed file names, so every label gets its own directory
func (run *PipelineRun) PileupDir() string {
	return filepath.Join(run.OutDir, "pileup", run.Label)
}

// The directory holding the partitions and the phased VCFs
func (run *PipelineRun) PhasingDir() string {
	return filepath.Join(run.OutDir, "phasing")
}

func (run *PipelineRun) GenotypeVcf() string {
	return filepath.Join(run.OutDir, run.Label+".genotype.vcf.gz")
}

func (run *PipelineRun) PhasedVcf() string {
	return filepath.Join(run.OutDir, run.Label+".phased.vcf.gz")
}

func (run *PipelineRun) SummaryFile() string {
	return filepath.Join(run.OutDir, run.Label+".summary.yaml")
}

// Sample returns the sample name handed to the pileup engine, only set in bulk mode
func (run *PipelineRun) Sample() string {
	if run.Mode == ModeBulk {
		return run.Label
	}
	return ""
}

// TargetChromosomes returns chr1 to chr22 in order
func TargetChromosomes() []string {
	chroms := make([]string, NumAutosomes)
	for i := range chroms {
		chroms[i] = fmt.Sprintf("chr%d", i+1)
	}
	return chroms
}

// A struct representing the reference panel files of one autosome
type ReferencePanelEntry struct {
	// The chromosome with a "chr" prefix
	Chrom string

	// The panel variant file
	Bcf string

	// The index of the panel variant file
	Csi string
}

// ReferencePanel lists the expected panel files for all autosomes in order
func ReferencePanel(dir string) []ReferencePanelEntry {
	entries := []ReferencePanelEntry{}
	for _, chrom := range TargetChromosomes() {
		bcf := filepath.Join(dir, chrom+".genotypes.bcf")
		entries = append(entries, ReferencePanelEntry{
			Chrom: chrom,
			Bcf:   bcf,
			Csi:   bcf + ".csi",
		})
	}
	return entries
}

// A struct representing the per chromosome subset of the genotype VCF
type ChromosomePartition struct {
	// The chromosome with a "chr" prefix
	Chrom string

	// The amount of variants on this chromosome
	Count int

	// The location of the partition VCF
	// The file only exists when Count > 0
	Path string

	// The location of the partition index, empty until indexed
	Index string
}

// Retained reports whether the partition takes part in phasing
func (part ChromosomePartition) Retained() bool {
	return part.Count > 0
}

// A struct representing one invocation of the phasing engine
type PhasingTask struct {
	// The chromosome with a "chr" prefix
	Chrom string

	// The indexed partition VCF to phase
	Target string

	// The reference panel file of the same chromosome
	Reference string

	// The output prefix handed to the phasing engine
	OutPrefix string
}

// The phased VCF the phasing engine writes for this task
func (task PhasingTask) Output() string {
	return task.OutPrefix + ".vcf.gz"
}

// A struct pairing a phasing task with the result of its process
type PhasingOutcome struct {
	Task   PhasingTask
	Result StageResult
}

// The struct representing the header of a VCF file
type Header struct {
	// All meta information lines (##) in their original order, except the contig lines
	Meta []string

	// Object containing the FORMAT fields with their ID, Number, Type and Description
	// The ID is the key of the map
	Format map[string]HeaderLineIdNumberTypeDescription

	// List of all contigs in the VCF file with their ID and Length
	Contig []HeaderLineIdLength

	// List of all samples in the VCF file
	Samples []string
}

// A struct representing a header line in the VCF file with its ID, Number, Type and Description
type HeaderLineIdNumberTypeDescription struct {
	// The ID of the header line
	Id string

	// The number of values in the header line
	// Can be any integer, "A", "G", "R" or "."
	Number string

	// The type of the header line
	// Can be "Integer", "Float", "Flag", "String" or "Character"
	Type string

	// The description of the header line
	Description string
}

// Render the header line as a FORMAT meta information line
func (line HeaderLineIdNumberTypeDescription) formatLine() string {
	formatType := cases.Title(language.English, cases.Compact).String(strings.ToLower(line.Type))
	return fmt.Sprintf("##FORMAT=<ID=%s,Number=%s,Type=%s,Description=\"%s\">", line.Id, line.Number, formatType, line.Description)
}

// A struct representing a header line in the VCF file with its ID and Length
type HeaderLineIdLength struct {
	// The ID of the header line
	Id string

	// The length of the contig, 0 when unknown
	Length int64
}

// A struct representing a variant record in a VCF file
type Variant struct {
	// The chromosome of the variant
	Chromosome string

	// The 1-based position of the variant
	Pos int64

	// The ID of the variant
	Id string

	// The reference allele of the variant
	Ref string

	// The alternate allele of the variant
	Alt string

	// The Phred-scaled quality score of the variant
	Qual string

	// The filter status of the variant
	Filter string

	// The raw INFO column
	Info string

	// The raw FORMAT column, empty when the record has no samples
	Format string

	// The raw sample columns
	Samples []string
}

//
// Config structs
//

// The struct representing the configuration file
// The config file is a YAML file, every field is optional
type Config struct {
	// Locations of the external tools
	Tools ToolsConfig

	// Options handed to the pileup engine
	Pileup PileupConfig

	// Options handed to the phasing engine
	Phasing PhasingConfig
}

// A struct representing the external tools used by the pipeline
type ToolsConfig struct {
	// The pileup engine, looked up in $PATH when not absolute
	Cellsnp string

	// bcftools, used to index the partitions
	Bcftools string
}

// A struct representing the pileup options
type PileupConfig struct {
	// Minimum minor allele frequency, 0 means the default
	MinMaf float64 `yaml:"min_maf"`

	// Minimum aggregated count, 0 means the default
	MinCount int `yaml:"min_count"`

	// Extra arguments appended to the pileup command
	ExtraArgs []string `yaml:"extra_args"`
}

// A struct representing the phasing options
type PhasingConfig struct {
	// Threads per phasing invocation
	Threads int

	// Extra arguments appended to every phasing command
	ExtraArgs []string `yaml:"extra_args"`
}
