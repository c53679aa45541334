package refphase_api

import (
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/willf/bitset"
)

// Preflight checks every input of the run before anything is started
// The output directory is only created when all checks passed
func Preflight(run *PipelineRun, config *Config, logger *log.Logger) error {
	if err := checkOptions(run); err != nil {
		return err
	}

	// missing inputs are all reported before failing
	missing := []*MissingInputError{}
	checkExist := func(option string, paths ...string) {
		absent := []string{}
		for _, path := range paths {
			if _, err := os.Stat(path); err != nil {
				if os.IsNotExist(err) {
					logger.Printf("Error: File %v does not exist for command line parameter %v", path, option)
				} else {
					logger.Printf("Error %v when trying to access file %v", err, path)
				}
				absent = append(absent, path)
			}
		}
		if len(absent) > 0 {
			missing = append(missing, &MissingInputError{Option: option, Paths: absent})
		}
	}

	if run.Sam != "" {
		checkExist("--sam", splitList(run.Sam)...)
	} else {
		checkExist("--samlist", run.SamList)
	}
	if run.Barcode != "" {
		checkExist("--barcode", run.Barcode)
	}
	checkExist("--snpvcf", run.SnpVcf)
	checkExist("--gmap", run.GeneticMap)
	checkExist("--eagle", run.Eagle)
	checkExist("--paneldir", run.PanelDir)
	if info, err := os.Stat(run.PanelDir); err == nil && info.IsDir() {
		if err := checkPanel(run.PanelDir, logger); err != nil {
			missing = append(missing, err)
		}
	}

	if len(missing) > 0 {
		return missing[0]
	}

	if err := checkTools(run, config); err != nil {
		return err
	}

	if err := os.MkdirAll(run.OutDir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create the output directory %s", run.OutDir)
	}
	return nil
}

// Check the options that do not depend on the filesystem
func checkOptions(run *PipelineRun) error {
	if run.Label == "" {
		return &ConfigError{Option: "--label", Reason: "is required"}
	}
	if run.OutDir == "" {
		return &ConfigError{Option: "--outdir", Reason: "is required"}
	}
	if (run.Sam == "") == (run.SamList == "") {
		return &ConfigError{Option: "--sam/--samlist", Reason: "one and only one of them should be specified"}
	}
	switch run.Mode {
	case Mode10x, ModeSmartseq:
		if run.Barcode == "" {
			return &ConfigError{Option: "--barcode", Reason: "is required in " + string(run.Mode) + " mode"}
		}
	case ModeBulk:
	default:
		return &ConfigError{Option: "--mode", Reason: "unknown mode '" + string(run.Mode) + "'"}
	}
	if run.Cores < 1 {
		return &ConfigError{Option: "--ncores", Reason: "must be at least 1"}
	}
	required := []struct{ option, path string }{
		{"--snpvcf", run.SnpVcf},
		{"--gmap", run.GeneticMap},
		{"--eagle", run.Eagle},
		{"--paneldir", run.PanelDir},
	}
	for _, r := range required {
		if r.path == "" {
			return &ConfigError{Option: r.option, Reason: "is required"}
		}
	}
	return nil
}

// checkPanel verifies that the BCF and its index exist for every autosome
func checkPanel(dir string, logger *log.Logger) *MissingInputError {
	entries := ReferencePanel(dir)
	present := bitset.New(uint(len(entries)))
	absent := []string{}
	for i, entry := range entries {
		ok := true
		for _, path := range []string{entry.Bcf, entry.Csi} {
			if !fileExists(path) {
				logger.Printf("Error: Reference panel file %v does not exist", path)
				absent = append(absent, path)
				ok = false
			}
		}
		if ok {
			present.Set(uint(i))
		}
	}
	if present.All() {
		return nil
	}

	incomplete := []string{}
	for i, ok := present.NextClear(0); ok && i < present.Len(); i, ok = present.NextClear(i + 1) {
		incomplete = append(incomplete, entries[i].Chrom)
	}
	logger.Printf("Error: Reference panel is incomplete for %s", strings.Join(incomplete, ", "))
	return &MissingInputError{Option: "--paneldir", Paths: absent, Chromosomes: incomplete}
}

// checkTools makes sure the external tools can be started
func checkTools(run *PipelineRun, config *Config) error {
	info, err := os.Stat(run.Eagle)
	if err != nil {
		return &MissingInputError{Option: "--eagle", Paths: []string{run.Eagle}}
	}
	if info.IsDir() || info.Mode().Perm()&0111 == 0 {
		return &ConfigError{Option: "--eagle", Reason: run.Eagle + " is not executable"}
	}
	for _, tool := range []string{config.Tools.Cellsnp, config.Tools.Bcftools} {
		if _, err := exec.LookPath(tool); err != nil {
			return &ConfigError{Option: "tools", Reason: "cannot find '" + tool + "' (" + err.Error() + ")"}
		}
	}
	return nil
}

func splitList(list string) []string {
	items := []string{}
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
