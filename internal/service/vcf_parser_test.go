package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validVCF = `##fileformat=VCFv4.2
##source=TestData
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	SAMPLE1
22	42126611	rs3892097	C	T	99.0	PASS	GENE=CYP2D6;STAR=*4	GT:DP	0/1:35
10	94781859	rs4244285	G	A	87.5	PASS	GENE=CYP2C19;STAR=*2	GT:DP	1/1:42
16	31096368	rs9923231	G	A	92.1	PASS	GENE=VKORC1	GT	0/1
`

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestVCFParserValidFile(t *testing.T) {
	parser := NewVCFParser(newTestLogger())

	result := parser.Parse(validVCF)
	require.True(t, result.Success, result.Error)

	assert.Equal(t, "VCFv4.2", result.FormatVersion)
	assert.Equal(t, 3, result.TotalVariants)
	require.Len(t, result.Variants, 3)

	first := result.Variants[0]
	assert.Equal(t, "rs3892097", first.RSID)
	assert.Equal(t, "CYP2D6", first.Gene)
	assert.Equal(t, "22", first.Chromosome)
	require.NotNil(t, first.Position)
	assert.Equal(t, int64(42126611), *first.Position)
	assert.Equal(t, "C", first.RefAllele)
	assert.Equal(t, "T", first.AltAllele)
	assert.Equal(t, "0/1", first.Genotype)
	assert.Equal(t, "*4", first.StarAllele)
	require.NotNil(t, first.QualityScore)
	assert.Equal(t, 99.0, *first.QualityScore)
	assert.Equal(t, "PASS", first.FilterStatus)

	// row order must follow the file
	assert.Equal(t, "CYP2C19", result.Variants[1].Gene)
	assert.Equal(t, "VKORC1", result.Variants[2].Gene)
	assert.Equal(t, "0/1", result.Variants[2].Genotype)
}

func TestVCFParserValidation(t *testing.T) {
	parser := NewVCFParser(newTestLogger())

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing fileformat header",
			content: "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n22\t100\trs1\tC\tT\t99\tPASS\tGENE=CYP2D6\n",
			wantErr: "must declare ##fileformat=VCFv4",
		},
		{
			name:    "wrong format version",
			content: "##fileformat=VCFv3.0\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n22\t100\trs1\tC\tT\t99\tPASS\tGENE=CYP2D6\n",
			wantErr: "must declare ##fileformat=VCFv4",
		},
		{
			name:    "no data rows",
			content: "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n",
			wantErr: "no variant data rows",
		},
		{
			name:    "no gene tag anywhere",
			content: "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n22\t100\trs1\tC\tT\t99\tPASS\tDP=30\n",
			wantErr: "no GENE= tag",
		},
		{
			name:    "empty content",
			content: "",
			wantErr: "must declare ##fileformat=VCFv4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parser.Parse(tt.content)
			assert.False(t, result.Success)
			assert.Contains(t, result.Error, tt.wantErr)
		})
	}
}

func TestVCFParserSkipsMalformedRows(t *testing.T) {
	parser := NewVCFParser(newTestLogger())

	content := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"22\t100\n" + // too few fields, skipped
		"22\t42126611\trs3892097\tC\tT\t99\tPASS\tGENE=CYP2D6\n"

	result := parser.Parse(content)
	require.True(t, result.Success, result.Error)
	assert.Equal(t, 1, result.TotalVariants)
}

func TestVCFParserMissingValues(t *testing.T) {
	parser := NewVCFParser(newTestLogger())

	content := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n" +
		"chr22\tnotanumber\t.\tC\tT\t.\t\tGENE=CYP2D6\n"

	result := parser.Parse(content)
	require.True(t, result.Success, result.Error)
	require.Len(t, result.Variants, 1)

	v := result.Variants[0]
	assert.Equal(t, "", v.RSID)
	assert.Equal(t, "22", v.Chromosome, "chr prefix is stripped")
	assert.Nil(t, v.Position)
	assert.Nil(t, v.QualityScore)
	assert.Equal(t, ".", v.FilterStatus)
	assert.Equal(t, "", v.Genotype, "no sample column means no genotype")
}
