package refphase_api

import (
	"sort"
	"strconv"
	"strings"

	psort "github.com/exascience/pargo/sort"
)

// Ranks of the non-numeric chromosomes, everything unknown sorts after them by name
const (
	rankX = NumAutosomes + 1 + iota
	rankY
	rankM
	rankOther
)

// ChromosomeRank orders chromosomes naturally: 1..22, X, Y, M, then everything else
func ChromosomeRank(chrom string) int {
	name := strings.TrimPrefix(chrom, "chr")
	if n, err := strconv.Atoi(name); err == nil && n >= 1 && n <= NumAutosomes {
		return n
	}
	switch name {
	case "X":
		return rankX
	case "Y":
		return rankY
	case "M", "MT":
		return rankM
	}
	return rankOther
}

// AddChrPrefix adds the "chr" prefix unless the chromosome already has it
func AddChrPrefix(chrom string) string {
	if strings.HasPrefix(chrom, "chr") {
		return chrom
	}
	return "chr" + chrom
}

func lessVariant(v1, v2 *Variant) bool {
	r1, r2 := ChromosomeRank(v1.Chromosome), ChromosomeRank(v2.Chromosome)
	if r1 != r2 {
		return r1 < r2
	}
	if r1 == rankOther && v1.Chromosome != v2.Chromosome {
		return v1.Chromosome < v2.Chromosome
	}
	return v1.Pos < v2.Pos
}

type variantSorter []*Variant

func (s variantSorter) SequentialSort(i, j int) {
	variants := s[i:j]
	sort.SliceStable(variants, func(i, j int) bool {
		return lessVariant(variants[i], variants[j])
	})
}

func (s variantSorter) NewTemp() psort.StableSorter {
	return variantSorter(make([]*Variant, len(s)))
}

func (s variantSorter) Len() int {
	return len(s)
}

func (s variantSorter) Less(i, j int) bool {
	return lessVariant(s[i], s[j])
}

func (s variantSorter) Assign(source psort.StableSorter) func(i, j, len int) {
	dst, src := s, source.(variantSorter)
	return func(i, j, len int) {
		copy(dst[i:i+len], src[j:j+len])
	}
}

// SortVariants sorts the variants by chromosome and position using a parallel stable sort
func SortVariants(variants []*Variant) {
	psort.StableSort(variantSorter(variants))
}
