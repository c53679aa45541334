package refphase_api

import (
	"os"

	"github.com/pkg/errors"
)

// The ordered phased VCFs expected from the phasing stage
type MergeSet struct {
	Paths []string
}

// NewMergeSet lists the expected output of every task, in task order
func NewMergeSet(tasks []PhasingTask) MergeSet {
	paths := make([]string, len(tasks))
	for i, task := range tasks {
		paths[i] = task.Output()
	}
	return MergeSet{Paths: paths}
}

// Missing returns the expected paths that are not readable regular files
func (set MergeSet) Missing() []string {
	missing := []string{}
	for _, path := range set.Paths {
		if !fileExists(path) {
			missing = append(missing, path)
			continue
		}
		file, err := os.Open(path)
		if err != nil {
			missing = append(missing, path)
			continue
		}
		file.Close()
	}
	return missing
}

// Merge concatenates the phased VCFs into out, sorted by chromosome and position
// An existing out is removed first, nothing is written when one of the expected files is missing
func Merge(set MergeSet, out string) (int, error) {
	if err := removeIfExists(out); err != nil {
		return 0, err
	}
	if len(set.Paths) == 0 {
		return 0, errors.New("no phased VCFs to merge")
	}
	if missing := set.Missing(); len(missing) > 0 {
		return 0, &MissingOutputError{Stage: "phasing", Paths: missing}
	}

	var header *Header
	variants := []*Variant{}
	for _, path := range set.Paths {
		reader, err := OpenVcf(path)
		if err != nil {
			return 0, err
		}
		if header == nil {
			header = reader.Header
		}
		records, err := reader.ReadAll()
		reader.Close()
		if err != nil {
			return 0, errors.Wrapf(err, "failed to read %s", path)
		}
		variants = append(variants, records...)
	}

	SortVariants(variants)

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
