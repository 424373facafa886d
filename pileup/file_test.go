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
package pileup_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/variantml/bio/pileup"
)

const pileupText = `mol1	1	G	3	GGg	~~~
mol1	2	A	4	AaAa	IIII
mol1	3	C	2	Cc	II
mol1	4	T	3	T*t	III
mol1	5	A	4	AA+2GAa+1ga	IIII
mol1	6	G	0	*	*
mol1	7	T	2	Tt#	II
`

// TestNewFile tests mpileup text parsing.
func TestNewFile(t *testing.T) {
	f, err := pileup.NewFile(strings.NewReader(pileupText), "test.pileup")
	assert.NoError(t, err)
	assert.EQ(t, f.NumSites(), 7)
	expect.EQ(t, f.Site(0), pileup.Site{
		Chrom: "mol1",
		Pos:   1,
		Ref:   byte('G'),
		Depth: 3,
		Bases: "GGg",
		Quals: "~~~",
	})
	expect.EQ(t, f.Site(5), pileup.Site{
		Chrom: "mol1",
		Pos:   6,
		Ref:   byte('G'),
		Depth: 0,
		Bases: "*",
		Quals: "*",
	})
	expect.EQ(t, f.Path(), "test.pileup")

	// Zero-depth rows may omit the base and quality columns entirely.
	f, err = pileup.NewFile(strings.NewReader("mol1\t9\tA\t0\n"), "short.pileup")
	assert.NoError(t, err)
	assert.EQ(t, f.NumSites(), 1)
	expect.EQ(t, f.Site(0), pileup.Site{Chrom: "mol1", Pos: 9, Ref: byte('A')})
}

// TestNewFileErrors tests rejection of malformed mpileup lines.
func TestNewFileErrors(t *testing.T) {
	for _, test := range []struct {
		name   string
		line   string
		errPat string
	}{
		{"fewColumns", "mol1\t5\tA", "at least 4 columns"},
		{"badPos", "mol1\tx\tA\t1\tG\tI", "invalid position"},
		{"negativePos", "mol1\t-3\tA\t1\tG\tI", "invalid position"},
		{"badRef", "mol1\t5\tAC\t1\tG\tI", "invalid reference"},
		{"badDepth", "mol1\t5\tA\tdeep\tG\tI", "invalid depth"},
		{"missingBases", "mol1\t5\tA\t2", "no base column"},
	} {
		_, err := pileup.NewFile(strings.NewReader(test.line+"\n"), "bad.pileup")
		expect.NotNil(t, err, "test %s", test.name)
		assert.HasSubstr(t, err.Error(), test.errPat)
		assert.HasSubstr(t, err.Error(), "line 1")
	}
}

// TestContigRows tests contig-block and position lookup.
func TestContigRows(t *testing.T) {
	const twoContigs = `mol1	10	A	1	A	I
mol1	11	C	1	C	I
mol1	14	G	1	G	I
mol2	3	T	1	T	I
mol2	5	A	1	A	I
`
	f, err := pileup.NewFile(strings.NewReader(twoContigs), "two.pileup")
	assert.NoError(t, err)

	start, end := f.ContigRows("mol1")
	expect.EQ(t, start, pileup.PosType(0))
	expect.EQ(t, end, pileup.PosType(3))
	start, end = f.ContigRows("mol2")
	expect.EQ(t, start, pileup.PosType(3))
	expect.EQ(t, end, pileup.PosType(5))
	start, end = f.ContigRows("mol3")
	expect.EQ(t, start, end)

	// Exact hit, gap hit, before-start, and past-end lookups.
	expect.EQ(t, f.SearchPos(0, 3, 11), pileup.PosType(1))
	expect.EQ(t, f.SearchPos(0, 3, 12), pileup.PosType(2))
	expect.EQ(t, f.SearchPos(0, 3, 1), pileup.PosType(0))
	expect.EQ(t, f.SearchPos(0, 3, 15), pileup.PosType(3))
	expect.EQ(t, f.SearchPos(3, 5, 4), pileup.PosType(4))
}

// TestReadFile tests loading plain and gzip-compressed pileup files.
func TestReadFile(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	plainPath := filepath.Join(tmpdir, "sample.pileup")
	assert.NoError(t, ioutil.WriteFile(plainPath, []byte(pileupText), 0644))

	gzPath := filepath.Join(tmpdir, "sample.pileup.gz")
	gzFile, err := os.Create(gzPath)
	assert.NoError(t, err)
	gzWriter := gzip.NewWriter(gzFile)
	_, err = gzWriter.Write([]byte(pileupText))
	assert.NoError(t, err)
	assert.NoError(t, gzWriter.Close())
	assert.NoError(t, gzFile.Close())

	plain, err := pileup.ReadFile(ctx, plainPath)
	assert.NoError(t, err)
	compressed, err := pileup.ReadFile(ctx, gzPath)
	assert.NoError(t, err)

	assert.EQ(t, plain.NumSites(), compressed.NumSites())
	for i := 0; i < plain.NumSites(); i++ {
		expect.EQ(t, compressed.Site(i), plain.Site(i))
	}
}
