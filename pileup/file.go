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
package pileup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
)

// Site is one parsed mpileup line: the stack of read observations over a
// single reference position.
type Site struct {
	Chrom string
	// Pos is the 1-based reference position as written in the file.
	Pos PosType
	// Ref is the reference base.
	Ref byte
	// Depth is the read depth reported in the fourth column.
	Depth int
	// Bases is the raw base column; empty when Depth is zero and the column
	// was omitted.
	Bases string
	// Quals is the raw base quality column.
	Quals string
}

// Source provides per-position read stacks addressed by 0-based row offset.
// Implementations must be safe for concurrent readers.
type Source interface {
	// NumSites returns the number of addressable rows.
	NumSites() int
	// Site returns the i'th row, 0-based.
	Site(i int) Site
}

// FileRegion identifies the half-open row-offset range [StartPos, EndPos) of
// the pileup file at Path.  Offsets are 0-based row indexes, not reference
// positions.
type FileRegion struct {
	Path     string
	StartPos PosType
	EndPos   PosType
}

// File is an in-memory Source holding every row of one mpileup file.  It is
// immutable after creation.
type File struct {
	path  string
	sites []Site
}

var _ Source = (*File)(nil)

// NumSites implements Source.
func (f *File) NumSites() int { return len(f.sites) }

// Site implements Source.
func (f *File) Site(i int) Site { return f.sites[i] }

// Path returns the path the file was loaded from.
func (f *File) Path() string { return f.path }

// ContigRows returns the half-open row-offset span of the rows on the named
// contig.  samtools emits each contig as one contiguous block; only the first
// block is returned if the input violates that.  start == end means the
// contig is absent.
func (f *File) ContigRows(contig string) (start, end PosType) {
	i := 0
	for ; i < len(f.sites); i++ {
		if f.sites[i].Chrom == contig {
			break
		}
	}
	start = PosType(i)
	for ; i < len(f.sites); i++ {
		if f.sites[i].Chrom != contig {
			break
		}
	}
	end = PosType(i)
	return
}

// SearchPos returns the smallest row offset in [start, end) whose 1-based
// position is >= pos, or end if there is none.  Rows in the range must be
// sorted by position, as in samtools output.
func (f *File) SearchPos(start, end PosType, pos PosType) PosType {
	n := int(end - start)
	idx := sort.Search(n, func(i int) bool { return f.sites[int(start)+i].Pos >= pos })
	return start + PosType(idx)
}

// Deep pileups can exceed bufio.Scanner's default line length limit.
const maxPileupLineBytes = 64 * 1024 * 1024

// NewFile parses mpileup text from r.  path is used only for error messages.
func NewFile(r io.Reader, path string) (*File, error) {
	f := &File{path: path}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxPileupLineBytes)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}
		site, err := parseSite(line)
		if err != nil {
			return nil, fmt.Errorf("pileup.NewFile: %s: line %d: %v", path, lineNum, err)
		}
		f.sites = append(f.sites, site)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pileup.NewFile: %s: %v", path, err)
	}
	return f, nil
}

// parseSite splits one mpileup line.  Lines have six tab-separated columns
// (contig, 1-based position, reference base, depth, bases, quals); the last
// two may be absent when depth is zero.
func parseSite(line string) (Site, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 4 {
		return Site{}, fmt.Errorf("expected at least 4 columns, found %d", len(fields))
	}
	pos, err := strconv.Atoi(fields[1])
	if err != nil || pos <= 0 || pos > PosTypeMax {
		return Site{}, fmt.Errorf("invalid position column %q", fields[1])
	}
	if len(fields[2]) != 1 {
		return Site{}, fmt.Errorf("invalid reference column %q", fields[2])
	}
	depth, err := strconv.Atoi(fields[3])
	if err != nil || depth < 0 {
		return Site{}, fmt.Errorf("invalid depth column %q", fields[3])
	}
	site := Site{
		Chrom: fields[0],
		Pos:   PosType(pos),
		Ref:   fields[2][0],
		Depth: depth,
	}
	if len(fields) >= 5 {
		site.Bases = fields[4]
	}
	if len(fields) >= 6 {
		site.Quals = fields[5]
	}
	if depth > 0 && site.Bases == "" {
		return Site{}, fmt.Errorf("depth %d but no base column", depth)
	}
	return site, nil
}

// ReadFile loads the mpileup file at path into memory, transparently
// decompressing it if needed.
func ReadFile(ctx context.Context, path string) (f *File, err error) {
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if e := infile.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	reader, _ := compress.NewReader(infile.Reader(ctx))
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if f, err = NewFile(reader, path); err != nil {
		return
	}
	return
}
