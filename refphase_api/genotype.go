package refphase_api

import (
	"strconv"

	"github.com/pkg/errors"
)

// The genotype given to every pileup site, phasing only looks at heterozygous sites
const syntheticGenotype = "0/1"

// Options of AddGenotype
type GenotypeOptions struct {
	// Name of the sample column that is added
	Sample string

	// Add the "chr" prefix to chromosome names that miss it
	ChrPrefix bool

	// Sort the records by chromosome and position
	Sort bool

	// Keep only the first record of every chromosome and position
	Unique bool
}

// AddGenotype rewrites the VCF at in to out with a single synthetic sample column
// It returns the amount of records written
func AddGenotype(in string, out string, opts GenotypeOptions) (int, error) {
	if opts.Sample == "" {
		return 0, errors.New("no sample name given for the genotype column")
	}

	reader, err := OpenVcf(in)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	variants, err := reader.ReadAll()
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read %s", in)
	}

	header := reader.Header
	header.Samples = []string{opts.Sample}
	header.addFormat(HeaderLineIdNumberTypeDescription{
		Id:          "GT",
		Number:      "1",
		Type:        "string",
		Description: "Genotype",
	})
	if opts.ChrPrefix {
		for i := range header.Contig {
			header.Contig[i].Id = AddChrPrefix(header.Contig[i].Id)
		}
	}

	for _, variant := range variants {
		if opts.ChrPrefix {
			variant.Chromosome = AddChrPrefix(variant.Chromosome)
		}
		variant.Format = "GT"
		variant.Samples = []string{syntheticGenotype}
	}

	if opts.Sort {
		SortVariants(variants)
	}
	if opts.Unique {
		variants = uniqueVariants(variants)
	}

	writer, err := CreateVcf(out)
	if err != nil {
		return 0, err
	}
	if err := writer.WriteHeader(header); err != nil {
		writer.Abort()
		return 0, errors.Wrapf(err, "failed to write the header of %s", out)
	}
	for _, variant := range variants {
		if err := writer.Write(variant); err != nil {
			writer.Abort()
			return 0, errors.Wrapf(err, "failed to write %s", out)
		}
	}
	if err := writer.Close(); err != nil {
		return 0, err
	}
	return writer.Count(), nil
}

// uniqueVariants drops every record whose chromosome and position were already seen
func uniqueVariants(variants []*Variant) []*Variant {
	seen := map[string]struct{}{}
	unique := variants[:0]
	for _, variant := range variants {
		key := variant.Chromosome + ":" + strconv.FormatInt(variant.Pos, 10)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, variant)
	}
	return unique
}
