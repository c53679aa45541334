package refphase_api

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"
	"gopkg.in/yaml.v2"
)

// Read the configuration file when one is given, cast it to its struct and fill in the defaults
func ReadConfig(Cctx *cli.Context) (*Config, error) {
	return LoadConfig(Cctx.String("config"))
}

// LoadConfig reads the YAML configuration file at path. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		configFile, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open the config file")
		}
		if err := yaml.UnmarshalStrict(configFile, &config); err != nil {
			return nil, errors.Wrap(err, "failed to parse the config file")
		}
	}

	config.defineMissing()
	return &config, nil
}

// Define all missing fields
func (config *Config) defineMissing() {
	if config.Tools.Cellsnp == "" {
		config.Tools.Cellsnp = "cellsnp-lite"
	}
	if config.Tools.Bcftools == "" {
		config.Tools.Bcftools = "bcftools"
	}
	if config.Pileup.MinMaf == 0 {
		config.Pileup.MinMaf = 0.1
	}
	if config.Pileup.MinCount == 0 {
		config.Pileup.MinCount = 20
	}
	if config.Phasing.Threads == 0 {
		config.Phasing.Threads = 1
	}
}

// NewPipelineRun creates the run description from the command line
func NewPipelineRun(Cctx *cli.Context) (*PipelineRun, error) {
	mode, err := resolveMode(Cctx.String("mode"), Cctx.IsSet("mode"), Cctx.Bool("smartseq"), Cctx.Bool("bulk"))
	if err != nil {
		return nil, err
	}

	return &PipelineRun{
		ID:         uuid.NewString(),
		Label:      strings.TrimSpace(Cctx.String("label")),
		Mode:       mode,
		Genome:     GenomeFromMap(Cctx.String("gmap")),
		OutDir:     Cctx.String("outdir"),
		Sam:        Cctx.String("sam"),
		SamList:    Cctx.String("samlist"),
		Barcode:    Cctx.String("barcode"),
		SnpVcf:     Cctx.String("snpvcf"),
		GeneticMap: Cctx.String("gmap"),
		Eagle:      Cctx.String("eagle"),
		PanelDir:   Cctx.String("paneldir"),
		CellTag:    Cctx.String("cellTAG"),
		UmiTag:     Cctx.String("UMItag"),
		Cores:      Cctx.Int("ncores"),
	}, nil
}

// Combine the --mode selector with the --smartseq and --bulk shortcuts
func resolveMode(modeFlag string, modeSet bool, smartseq bool, bulk bool) (Mode, error) {
	if smartseq && bulk {
		return "", &ConfigError{Option: "--smartseq/--bulk", Reason: "only one of them can be given"}
	}

	mode := Mode10x
	if modeSet {
		parsed, err := ParseMode(modeFlag)
		if err != nil {
			return "", err
		}
		mode = parsed
	}

	shortcut := Mode("")
	if smartseq {
		shortcut = ModeSmartseq
	} else if bulk {
		shortcut = ModeBulk
	}
	if shortcut == "" {
		return mode, nil
	}
	if modeSet && mode != shortcut {
		return "", &ConfigError{Option: "--mode", Reason: "'" + string(mode) + "' conflicts with --" + string(shortcut)}
	}
	return shortcut, nil
}
