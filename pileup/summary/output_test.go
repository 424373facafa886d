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
package summary_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/kshedden/gonpy"
	"github.com/variantml/bio/pileup/summary"
)

// TestWriteNpy tests the numpy writers against a reader round-trip.
func TestWriteNpy(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	enc := summary.New(summary.Opts{ExcludeNoCoveragePositions: true, NormalizeCounts: false})
	s, err := enc.EncodeSource(context.Background(), testSource(t), 0, 12)
	assert.NoError(t, err)

	countsPath := filepath.Join(tmpdir, "counts.npy")
	countsFile, err := os.Create(countsPath)
	assert.NoError(t, err)
	assert.NoError(t, summary.WriteCountsNpy(s, countsFile))
	assert.NoError(t, countsFile.Close())

	positionsPath := filepath.Join(tmpdir, "positions.npy")
	positionsFile, err := os.Create(positionsPath)
	assert.NoError(t, err)
	assert.NoError(t, summary.WritePositionsNpy(s, positionsFile))
	assert.NoError(t, positionsFile.Close())

	countsReader, err := gonpy.NewFileReader(countsPath)
	assert.NoError(t, err)
	expect.EQ(t, countsReader.Shape, []int{s.NumRows(), summary.NCol})
	counts, err := countsReader.GetFloat64()
	assert.NoError(t, err)
	expect.EQ(t, counts, s.Counts)

	positionsReader, err := gonpy.NewFileReader(positionsPath)
	assert.NoError(t, err)
	expect.EQ(t, positionsReader.Shape, []int{s.NumRows(), 2})
	positions, err := positionsReader.GetInt32()
	assert.NoError(t, err)
	expectedFlat := make([]int32, 0, 2*s.NumRows())
	for _, p := range s.Index {
		expectedFlat = append(expectedFlat, int32(p.Pos), int32(p.Sub))
	}
	expect.EQ(t, positions, expectedFlat)
}

// TestWrite tests the format dispatch entry point.
func TestWrite(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	enc := summary.New(summary.DefaultOpts)
	s, err := enc.EncodeSource(ctx, testSource(t), 0, 12)
	assert.NoError(t, err)
	s.Path = "sample.pileup"

	prefix := filepath.Join(tmpdir, "out")
	for _, format := range []string{"npy", "rio", "tsv", "tsv-bgz"} {
		assert.NoError(t, summary.Write(ctx, s, format, prefix, 1), "format %s", format)
	}

	// rio round-trips.
	rioFile, err := os.Open(prefix + ".summary.rio")
	assert.NoError(t, err)
	got, err := summary.ReadSummaryRio(rioFile)
	assert.NoError(t, err)
	assert.NoError(t, rioFile.Close())
	expect.EQ(t, got, s)

	// tsv and tsv-bgz agree after decompression.
	plain, err := ioutil.ReadFile(prefix + ".summary.tsv")
	assert.NoError(t, err)
	gzFile, err := os.Open(prefix + ".summary.tsv.gz")
	assert.NoError(t, err)
	bgzr, err := bgzf.NewReader(gzFile, 1)
	assert.NoError(t, err)
	unzipped, err := ioutil.ReadAll(bgzr)
	assert.NoError(t, err)
	assert.NoError(t, bgzr.Close())
	assert.NoError(t, gzFile.Close())
	expect.EQ(t, unzipped, plain)

	// npy outputs exist as a pair.
	for _, suffix := range []string{".counts.npy", ".positions.npy"} {
		if _, err := os.Stat(prefix + suffix); err != nil {
			t.Errorf("missing %s output: %v", suffix, err)
		}
	}

	// Unknown formats are rejected.
	expect.NotNil(t, summary.Write(ctx, s, "hdf5", prefix, 1))
}
