package refphase_api

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// The base VCF written by the pileup engine
const pileupVcfName = "cellSNP.base.vcf.gz"

// The pileup engine command for the mode of the run
func (p *Pipeline) pileupCommand() Command {
	run := p.run
	args := []string{}
	if run.Sam != "" {
		args = append(args, "-s", run.Sam)
	} else {
		args = append(args, "-S", run.SamList)
	}

	switch run.Mode {
	case Mode10x:
		args = append(args, "-b", run.Barcode, "--cellTAG", run.CellTag, "--UMItag", run.UmiTag)
	case ModeSmartseq:
		umiTag := run.UmiTag
		if umiTag == "" {
			umiTag = "None"
		}
		args = append(args, "-i", run.Barcode, "--cellTAG", "None", "--UMItag", umiTag)
	case ModeBulk:
		args = append(args, "-I", run.Sample(), "--cellTAG", "None", "--UMItag", "None")
	}

	args = append(args,
		"-O", run.PileupDir(),
		"-R", run.SnpVcf,
		"-p", strconv.Itoa(run.Cores),
		"--minMAF", strconv.FormatFloat(p.config.Pileup.MinMaf, 'f', -1, 64),
		"--minCOUNT", strconv.Itoa(p.config.Pileup.MinCount),
		"--gzip",
	)
	args = append(args, p.config.Pileup.ExtraArgs...)
	return Command{Name: p.config.Tools.Cellsnp, Args: args}
}

// Pileup runs the pileup engine and returns the location of the base VCF
func (p *Pipeline) Pileup(ctx context.Context) (string, error) {
	dir := p.run.PileupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create the pileup directory")
	}

	out := filepath.Join(dir, pileupVcfName)
	if err := removeIfExists(out); err != nil {
		return "", err
	}

	cmd := p.pileupCommand()
	if err := WriteScript(filepath.Join(dir, "run_pileup.sh"), p.run.ID, cmd); err != nil {
		return "", err
	}
	logFile, err := os.Create(filepath.Join(dir, "pileup.log"))
	if err != nil {
		return "", errors.Wrap(err, "failed to create the pileup log")
	}
	defer logFile.Close()

	p.logger.Printf("Executing command:\n %s", cmd.String())
	result := p.runner.Run(ctx, "pileup", cmd, logFile)
	RequireOutputs(&result, out)
	if !result.Ok() {
		if result.Stderr != "" {
			p.logger.Printf("pileup stderr:\n%s", result.Stderr)
		}
		return "", &StageError{Result: result}
	}
	return out, nil
}
