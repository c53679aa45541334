package main

import (
	"log"
	"os"

	"github.com/nvnieuwk/refphase/refphase_api"
	cli "github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:            "refphase",
		Usage:           "Pileup, genotype, reference-phase and merge the SNPs of a sequencing cohort",
		HideHelpCommand: true,
		Version:         "0.1.0dev",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "label",
				Aliases:  []string{"l"},
				Usage:    "Task label, used in the names of all output files",
				Required: true,
				Category: "Required",
			},
			&cli.StringFlag{
				Name:     "sam",
				Usage:    "Comma separated indexed BAM/CRAM file(s). Mutually exclusive with --samlist",
				Category: "Required",
			},
			&cli.StringFlag{
				Name:     "samlist",
				Usage:    "A file listing BAM/CRAM files, one per line. Mutually exclusive with --sam",
				Category: "Required",
			},
			&cli.StringFlag{
				Name:     "barcode",
				Usage:    "A plain file listing all effective cell barcodes (10x) or sample IDs (smartseq)",
				Category: "Required",
			},
			&cli.StringFlag{
				Name:     "snpvcf",
				Usage:    "A VCF file listing all candidate SNPs",
				Required: true,
				Category: "Required",
			},
			&cli.StringFlag{
				Name:     "outdir",
				Aliases:  []string{"o"},
				Usage:    "The output directory",
				Required: true,
				Category: "Required",
			},
			&cli.StringFlag{
				Name:     "gmap",
				Usage:    "The genetic map of the phasing engine (e.g. genetic_map_hg38_withX.txt.gz)",
				Required: true,
				Category: "Required",
			},
			&cli.StringFlag{
				Name:     "eagle",
				Usage:    "Path to the Eagle2 binary",
				Required: true,
				Category: "Required",
			},
			&cli.StringFlag{
				Name:     "paneldir",
				Usage:    "Directory with the phasing reference panel (chr{1..22}.genotypes.bcf and .csi)",
				Required: true,
				Category: "Required",
			},
			&cli.StringFlag{
				Name:     "cellTAG",
				Usage:    "Cell barcode tag",
				Value:    "CB",
				Category: "Optional",
			},
			&cli.StringFlag{
				Name:     "UMItag",
				Usage:    "UMI tag",
				Value:    "UB",
				Category: "Optional",
			},
			&cli.IntFlag{
				Name:     "ncores",
				Aliases:  []string{"p"},
				Usage:    "Number of processes to run in parallel",
				Value:    1,
				Category: "Optional",
			},
			&cli.StringFlag{
				Name:     "mode",
				Usage:    "The mode to run in. Must be one of: 10x, smartseq, bulk",
				Value:    "10x",
				Category: "Optional",
				Action: func(c *cli.Context, input string) error {
					if _, err := refphase_api.ParseMode(input); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					return nil
				},
			},
			&cli.BoolFlag{
				Name:     "smartseq",
				Usage:    "Run in smartseq mode, same as --mode smartseq",
				Category: "Optional",
			},
			&cli.BoolFlag{
				Name:     "bulk",
				Usage:    "Run in bulk mode, same as --mode bulk",
				Category: "Optional",
			},
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Configuration file (YAML) with tool locations and stage options",
				Category: "Optional",
			},
		},
		Action: func(Cctx *cli.Context) error {
			config, err := refphase_api.ReadConfig(Cctx)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			run, err := refphase_api.NewPipelineRun(Cctx)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			pipeline := refphase_api.NewPipeline(run, config, refphase_api.ExecRunner{}, nil)
			if err := pipeline.Run(Cctx.Context); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.New(os.Stderr, "", 0).Fatal(err)
	}
}
