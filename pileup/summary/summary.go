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

// Package summary converts mpileup text regions into fixed-width count
// matrices suitable for model training and inference.
//
// Every output row counts the read observations over one pileup row, split
// into ten channels: a (base x strand) count for A/C/G/T on each strand,
// a deletion-placeholder count, and an insertion-event count.  Positions
// whose columns carry insertions additionally emit one expansion row
// tallying the inserted bases themselves; the parallel position index
// disambiguates expansion rows from primary rows.
package summary

import (
	"context"
	"fmt"

	"github.com/variantml/bio/pileup"
)

// PosType is the integer type used to represent pileup row offsets.
type PosType = pileup.PosType

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = pileup.PosTypeMax

// Count matrix channel indexes.  The (base, strand) channel of a regular
// base call is 2*base + strand.
const (
	ColAFwd = int(2*pileup.BaseA) + int(pileup.StrandFwd)
	ColARev = int(2*pileup.BaseA) + int(pileup.StrandRev)
	ColCFwd = int(2*pileup.BaseC) + int(pileup.StrandFwd)
	ColCRev = int(2*pileup.BaseC) + int(pileup.StrandRev)
	ColGFwd = int(2*pileup.BaseG) + int(pileup.StrandFwd)
	ColGRev = int(2*pileup.BaseG) + int(pileup.StrandRev)
	ColTFwd = int(2*pileup.BaseT) + int(pileup.StrandFwd)
	ColTRev = int(2*pileup.BaseT) + int(pileup.StrandRev)
	ColDel  = int(pileup.NBase) * pileup.NStrand
	ColIns  = ColDel + 1

	// NCol is the number of channels in a count matrix row.
	NCol = ColIns + 1
)

// RowPos locates one matrix row within its source file: Pos is the 0-based
// row offset, Sub is 0 for the primary row and 1 for the insertion
// expansion row of the same position.
type RowPos struct {
	Pos PosType
	Sub PosType
}

func (p RowPos) less(q RowPos) bool {
	return p.Pos < q.Pos || (p.Pos == q.Pos && p.Sub < q.Sub)
}

// Summary is the encoded output for one region: a row-major count matrix
// plus the position index, one RowPos per matrix row.
type Summary struct {
	// Path of the source pileup file, when known.
	Path string
	// Counts is the row-major NumRows() x NCol count matrix.
	Counts []float64
	// Index locates each matrix row in the source file.
	Index []RowPos
}

// NumRows returns the number of matrix rows.
func (s *Summary) NumRows() int { return len(s.Index) }

// Row returns the i'th matrix row as a slice aliasing the Counts storage.
func (s *Summary) Row(i int) []float64 { return s.Counts[i*NCol : (i+1)*NCol] }

// Opts configures an Encoder.
type Opts struct {
	// ExcludeNoCoveragePositions drops positions without any countable read
	// observation instead of emitting all-zero rows for them.
	ExcludeNoCoveragePositions bool
	// NormalizeCounts rescales every nonzero row into a frequency
	// distribution over the ten channels.
	NormalizeCounts bool
}

// DefaultOpts are the encoder options used when none are given.
var DefaultOpts = Opts{
	ExcludeNoCoveragePositions: true,
	NormalizeCounts:            true,
}

// Encoder converts pileup regions into Summaries.  It is stateless and safe
// for concurrent use.
type Encoder struct {
	opts Opts
}

// New returns an Encoder with the given options.
func New(opts Opts) *Encoder {
	return &Encoder{opts: opts}
}

// Encode loads region.Path and encodes rows [region.StartPos,
// region.EndPos).
func (e *Encoder) Encode(ctx context.Context, region pileup.FileRegion) (*Summary, error) {
	src, err := pileup.ReadFile(ctx, region.Path)
	if err != nil {
		return nil, err
	}
	s, err := e.EncodeSource(ctx, src, region.StartPos, region.EndPos)
	if err != nil {
		return nil, err
	}
	s.Path = region.Path
	return s, nil
}

// EncodeSource encodes rows [start, end) of src.  The bounds must satisfy
// 0 <= start <= end <= src.NumSites(); a zero-width range yields an empty
// Summary.  The context is polled between rows, so long encodes can be
// cancelled.
func (e *Encoder) EncodeSource(ctx context.Context, src pileup.Source, start, end PosType) (*Summary, error) {
	numSites := src.NumSites()
	if start < 0 || end > PosType(numSites) || start > end {
		return nil, fmt.Errorf("summary.EncodeSource: region [%d, %d) outside addressable rows [0, %d]", start, end, numSites)
	}
	s := &Summary{}
	for pos := start; pos < end; pos++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		site := src.Site(int(pos))
		if site.Depth == 0 {
			// The base column of a zero-depth row is a placeholder, not
			// data.
			if !e.opts.ExcludeNoCoveragePositions {
				s.appendRow(pos, 0, nil)
			}
			continue
		}
		col, err := pileup.ParseColumn(site.Bases)
		if err != nil {
			return nil, fmt.Errorf("summary.EncodeSource: row %d (%s:%d): %v", pos, site.Chrom, site.Pos, err)
		}
		var main, ins [NCol]float64
		hasIns := false
		for _, call := range col.Calls {
			switch call.Kind {
			case pileup.CallBase:
				base, strand, _ := call.BaseStrand()
				if base < pileup.NBase {
					main[2*int(base)+int(strand)]++
				}
			case pileup.CallGap:
				main[ColDel]++
			case pileup.CallInsertion:
				main[ColIns]++
				hasIns = true
				for i := 0; i < len(call.Seq); i++ {
					base, strand, _ := pileup.BaseStrand(call.Seq[i])
					if base < pileup.NBase {
						ins[2*int(base)+int(strand)]++
					}
				}
			}
		}
		if e.opts.ExcludeNoCoveragePositions && rowSum(main[:]) == 0 {
			// Nothing countable (e.g. an all-N column).
			continue
		}
		s.appendRow(pos, 0, main[:])
		if hasIns {
			s.appendRow(pos, 1, ins[:])
		}
	}
	if e.opts.NormalizeCounts {
		s.normalize()
	}
	return s, nil
}

// appendRow appends one matrix row; nil counts appends an all-zero row.
func (s *Summary) appendRow(pos, sub PosType, counts []float64) {
	if counts == nil {
		counts = make([]float64, NCol)
	}
	s.Counts = append(s.Counts, counts...)
	s.Index = append(s.Index, RowPos{Pos: pos, Sub: sub})
}

func rowSum(row []float64) float64 {
	sum := 0.0
	for _, v := range row {
		sum += v
	}
	return sum
}

// normalize rescales every nonzero row to sum to 1.
func (s *Summary) normalize() {
	for i := 0; i < s.NumRows(); i++ {
		row := s.Row(i)
		sum := rowSum(row)
		if sum == 0 {
			continue
		}
		for j := range row {
			row[j] /= sum
		}
	}
}
