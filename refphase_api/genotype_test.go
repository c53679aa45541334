package refphase_api

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGenotype(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "cellSNP.base.vcf.gz")
	out := filepath.Join(dir, "pt1.genotype.vcf.gz")
	require.NoError(t, writeTestVcf(in, pileupHeader, []string{
		"5\t20000\t.\tC\tT\t.\tPASS\tAD=2;DP=25",
		"1\t14000\t.\tA\tG\t.\tPASS\tAD=5;DP=20",
		"1\t14000\t.\tA\tC\t.\tPASS\tAD=1;DP=20",
		"1\t9000\t.\tG\tA\t.\tPASS\tAD=3;DP=30",
	}))

	n, err := AddGenotype(in, out, GenotypeOptions{Sample: "pt1", ChrPrefix: true, Sort: true, Unique: true})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	header, variants := readTestVcf(t, out)
	assert.Equal(t, []string{"pt1"}, header.Samples)
	require.Contains(t, header.Format, "GT")
	assert.Equal(t, "chr1", header.Contig[0].Id)
	assert.Equal(t, int64(248956422), header.Contig[0].Length)

	require.Len(t, variants, 3)
	assert.Equal(t, "chr1\t9000\t.\tG\tA\t.\tPASS\tAD=3;DP=30\tGT\t0/1", variants[0].String())
	assert.Equal(t, "chr1\t14000\t.\tA\tG\t.\tPASS\tAD=5;DP=20\tGT\t0/1", variants[1].String())
	assert.Equal(t, "chr5\t20000\t.\tC\tT\t.\tPASS\tAD=2;DP=25\tGT\t0/1", variants[2].String())
}

func TestAddGenotypeKeepsOrderAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.vcf")
	out := filepath.Join(dir, "out.vcf")
	require.NoError(t, writeTestVcf(in, pileupHeader, []string{
		"chr5\t20000\t.\tC\tT\t.\tPASS\t.",
		"chr1\t14000\t.\tA\tG\t.\tPASS\t.",
		"chr1\t14000\t.\tA\tC\t.\tPASS\t.",
	}))

	n, err := AddGenotype(in, out, GenotypeOptions{Sample: "cohort"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, variants := readTestVcf(t, out)
	assert.Equal(t, []string{"chr5", "chr1"}, chromosomesOf(variants))
}

func TestAddGenotypeNeedsSample(t *testing.T) {
	dir := t.TempDir()
	_, err := AddGenotype(filepath.Join(dir, "in.vcf"), filepath.Join(dir, "out.vcf"), GenotypeOptions{})
	assert.Error(t, err)
}

func TestAddGenotypeMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := AddGenotype(filepath.Join(dir, "in.vcf.gz"), filepath.Join(dir, "out.vcf.gz"), GenotypeOptions{Sample: "pt1"})
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out.vcf.gz"))
}
