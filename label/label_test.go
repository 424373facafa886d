// Copyright 2020 VariantML Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package label_test

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/variantml/bio/label"
	"github.com/variantml/bio/variant"
)

const labeledVCF = "##fileformat=VCFv4.2\n" +
	"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tSP1\n" +
	"chr1\t10\t.\tA\tG\t50\tPASS\tDP=35;DB\tGT:GQ\t0/1:42\n" +
	"chr1\t20\trs7\tC\tT\t30\tPASS\t.\tGT\t1/1\n" +
	"chr1\t25\t.\tCT\tC\t.\tPASS\t.\tGT\t0/1\n" +
	"chr1\t30\t.\tG\tA\t.\tPASS\t.\tGT\t./.\n" +
	"chr1\t40\t.\tT\tA,C\t.\tPASS\t.\tGT\t1/2\n"

// writeVCFGz writes text as a BGZF-compressed VCF plus an empty sibling
// tabix index, returning the .vcf.gz path.
func writeVCFGz(t *testing.T, dir, name, text string) string {
	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	assert.NoError(t, err)
	bgzw := bgzf.NewWriter(out, 1)
	_, err = bgzw.Write([]byte(text))
	assert.NoError(t, err)
	assert.NoError(t, bgzw.Close())
	assert.NoError(t, out.Close())
	assert.NoError(t, ioutil.WriteFile(path+".tbi", nil, 0644))
	return path
}

// TestNew tests loading, filtering and classification of labeled variants.
func TestNew(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	vcfPath := writeVCFGz(t, tmpdir, "truth.vcf.gz", labeledVCF)

	loader, err := label.New(ctx, []label.VcfBamPath{
		{VCF: vcfPath, BAM: "truth.bam"},
	})
	assert.NoError(t, err)
	assert.EQ(t, loader.Len(), 2)
	expect.EQ(t, loader.VCFPaths(), []string{vcfPath})

	v := loader.At(0)
	expect.EQ(t, v, variant.Variant{
		Chrom:    "chr1",
		Pos:      10,
		ID:       ".",
		Ref:      "A",
		Alt:      "G",
		Qual:     50,
		HasQual:  true,
		Filter:   "PASS",
		Info:     "DP=35;DB",
		Format:   "GT:GQ",
		Samples:  []string{"0/1:42"},
		Zygosity: variant.Heterozygous,
		Type:     variant.SNP,
		VCF:      vcfPath,
		BAM:      "truth.bam",
	})
	v = loader.At(1)
	expect.EQ(t, v.Pos, int64(20))
	expect.EQ(t, v.Zygosity, variant.Homozygous)
	expect.EQ(t, v.HasQual, true)
	expect.EQ(t, v.Qual, 30.0)

	// Inputs marked false positive classify everything as NoVariant.
	fpLoader, err := label.New(ctx, []label.VcfBamPath{
		{VCF: vcfPath, BAM: "truth.bam", IsFalsePositive: true},
	})
	assert.NoError(t, err)
	assert.EQ(t, fpLoader.Len(), 2)
	expect.EQ(t, fpLoader.At(0).Zygosity, variant.NoVariant)
	expect.EQ(t, fpLoader.At(1).Zygosity, variant.NoVariant)

	// Multiple inputs concatenate in order.
	both, err := label.New(ctx, []label.VcfBamPath{
		{VCF: vcfPath, BAM: "a.bam"},
		{VCF: vcfPath, BAM: "b.bam", IsFalsePositive: true},
	})
	assert.NoError(t, err)
	assert.EQ(t, both.Len(), 4)
	expect.EQ(t, both.At(1).BAM, "a.bam")
	expect.EQ(t, both.At(2).BAM, "b.bam")
	expect.EQ(t, both.VCFPaths(), []string{vcfPath, vcfPath})
}

// TestIterator tests restartable iteration.
func TestIterator(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()
	vcfPath := writeVCFGz(t, tmpdir, "truth.vcf.gz", labeledVCF)

	loader, err := label.New(ctx, []label.VcfBamPath{{VCF: vcfPath, BAM: "truth.bam"}})
	assert.NoError(t, err)

	it := loader.Iter()
	var positions []int64
	for {
		v, err := it.Next()
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		positions = append(positions, v.Pos)
	}
	expect.EQ(t, positions, []int64{10, 20})

	// A drained iterator stays at EOF until reset; fresh iterators are
	// unaffected.
	_, err = it.Next()
	expect.EQ(t, err, io.EOF)
	it2 := loader.Iter()
	v, err := it2.Next()
	assert.NoError(t, err)
	expect.EQ(t, v.Pos, int64(10))
	it.Reset()
	v, err = it.Next()
	assert.NoError(t, err)
	expect.EQ(t, v.Pos, int64(10))
}

// TestNewErrors tests input validation.
func TestNewErrors(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	// Not bgzip-compressed.
	plainPath := filepath.Join(tmpdir, "plain.vcf")
	assert.NoError(t, ioutil.WriteFile(plainPath, []byte(labeledVCF), 0644))
	_, err := label.New(ctx, []label.VcfBamPath{{VCF: plainPath, BAM: "x.bam"}})
	expect.NotNil(t, err)
	assert.HasSubstr(t, err.Error(), "bgzip-compressed")

	// Missing tabix index.
	noTbi := writeVCFGz(t, tmpdir, "notbi.vcf.gz", labeledVCF)
	assert.NoError(t, os.Remove(noTbi+".tbi"))
	_, err = label.New(ctx, []label.VcfBamPath{{VCF: noTbi, BAM: "x.bam"}})
	expect.NotNil(t, err)
	assert.HasSubstr(t, err.Error(), "missing tabix index")

	// More than one sample.
	multiSample := "##fileformat=VCFv4.2\n" +
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tSP1\tSP2\n" +
		"chr1\t10\t.\tA\tG\t50\tPASS\t.\tGT\t0/1\t0/1\n"
	twoSamples := writeVCFGz(t, tmpdir, "two.vcf.gz", multiSample)
	_, err = label.New(ctx, []label.VcfBamPath{{VCF: twoSamples, BAM: "x.bam"}})
	expect.NotNil(t, err)
	assert.HasSubstr(t, err.Error(), "expected exactly one sample")

	// Hom-ref genotypes at variant sites are unclassifiable.
	homRef := strings.Replace(labeledVCF, "GT:GQ\t0/1:42", "GT:GQ\t0/0:42", 1)
	homRefPath := writeVCFGz(t, tmpdir, "homref.vcf.gz", homRef)
	_, err = label.New(ctx, []label.VcfBamPath{{VCF: homRefPath, BAM: "x.bam"}})
	expect.NotNil(t, err)
	assert.HasSubstr(t, err.Error(), "unsupported zygosity")
}

// TestVariantsRioRoundTrip tests the recordio writer and reader.
func TestVariantsRioRoundTrip(t *testing.T) {
	variants := []variant.Variant{
		{
			Chrom:    "chr1",
			Pos:      10,
			ID:       ".",
			Ref:      "A",
			Alt:      "G",
			Qual:     50.25,
			HasQual:  true,
			Filter:   "PASS",
			Info:     "DP=35;DB",
			Format:   "GT:GQ",
			Samples:  []string{"0/1:42"},
			Zygosity: variant.Heterozygous,
			Type:     variant.SNP,
			VCF:      "truth.vcf.gz",
			BAM:      "truth.bam",
		},
		{
			Chrom:    "chr2",
			Pos:      1 << 40,
			Ref:      "C",
			Alt:      "CAT",
			Filter:   ".",
			Zygosity: variant.NoVariant,
			Type:     variant.Insertion,
		},
	}
	vcfPaths := []string{"truth.vcf.gz", "fp.vcf.gz"}

	var buf bytes.Buffer
	assert.NoError(t, label.WriteVariantsRio(variants, vcfPaths, &buf))
	gotVariants, gotPaths, err := label.ReadVariantsRio(bytes.NewReader(buf.Bytes()))
	assert.NoError(t, err)
	expect.EQ(t, gotVariants, variants)
	expect.EQ(t, gotPaths, vcfPaths)
}

// TestWriteVariantsTSV tests the TSV rendering.
func TestWriteVariantsTSV(t *testing.T) {
	variants := []variant.Variant{
		{
			Chrom:    "chr1",
			Pos:      10,
			ID:       ".",
			Ref:      "A",
			Alt:      "G",
			Qual:     50,
			HasQual:  true,
			Filter:   "PASS",
			Info:     "DP=35;DB",
			Format:   "GT:GQ",
			Samples:  []string{"0/1:42"},
			Zygosity: variant.Heterozygous,
			Type:     variant.SNP,
			VCF:      "truth.vcf.gz",
			BAM:      "truth.bam",
		},
	}
	var buf bytes.Buffer
	assert.NoError(t, label.WriteVariantsTSV(variants, &buf))
	expected := "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tSAMPLE\tZYGOSITY\tTYPE\tVCF\tBAM\n" +
		"chr1\t10\t.\tA\tG\t50\tPASS\tDP=35;DB\tGT:GQ\t0/1:42\tHETEROZYGOUS\tSNP\ttruth.vcf.gz\ttruth.bam\n"
	expect.EQ(t, buf.String(), expected)
}
