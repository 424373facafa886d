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
package summary

import (
	"fmt"
	"sort"

	"github.com/variantml/bio/pileup"
)

// SplitRegion splits region into windows of at most size rows whose starts
// are (size - overlap) apart, in order.  The final window is clipped to the
// region end.  An empty region yields no windows.
func SplitRegion(region pileup.FileRegion, size, overlap PosType) ([]pileup.FileRegion, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("summary.SplitRegion: need 0 <= overlap < size, got size %d, overlap %d", size, overlap)
	}
	if region.StartPos < 0 || region.EndPos < region.StartPos {
		return nil, fmt.Errorf("summary.SplitRegion: invalid region [%d, %d)", region.StartPos, region.EndPos)
	}
	if region.StartPos == region.EndPos {
		return nil, nil
	}
	var windows []pileup.FileRegion
	step := size - overlap
	for start := region.StartPos; ; start += step {
		end := start + size
		if end >= region.EndPos {
			windows = append(windows, pileup.FileRegion{Path: region.Path, StartPos: start, EndPos: region.EndPos})
			return windows, nil
		}
		windows = append(windows, pileup.FileRegion{Path: region.Path, StartPos: start, EndPos: end})
	}
}

// lowerBound returns the first index in rows whose RowPos is >= p.
func lowerBound(rows []RowPos, p RowPos) int {
	return sort.Search(len(rows), func(i int) bool {
		return !rows[i].less(p)
	})
}

// StitchRanges returns, for each window's position index, the half-open row
// range to keep so that concatenating the kept slices covers every position
// exactly once.  Overlapping windows are cut at the midpoint of their
// shared rows; windows without overlap concatenate unchanged.  The windows
// must be in file order and encode consistent rows where they overlap.
func StitchRanges(indexes [][]RowPos) ([][2]int, error) {
	if len(indexes) == 0 {
		return nil, nil
	}
	ranges := make([][2]int, len(indexes))
	for i, index := range indexes {
		ranges[i] = [2]int{0, len(index)}
	}
	for i := 1; i < len(indexes); i++ {
		a, b := indexes[i-1], indexes[i]
		if len(a) == 0 || len(b) == 0 {
			continue
		}
		if a[len(a)-1].less(b[0]) {
			continue
		}
		ovStart := lowerBound(a, b[0])
		cutA := ovStart + (len(a)-ovStart)/2
		boundary := a[cutA]
		cutB := lowerBound(b, boundary)
		if cutB == len(b) || b[cutB] != boundary {
			return nil, fmt.Errorf("summary.StitchRanges: windows %d and %d disagree in their overlap", i-1, i)
		}
		ranges[i-1][1] = cutA
		ranges[i][0] = cutB
	}
	var prev RowPos
	havePrev := false
	for i, r := range ranges {
		if r[0] > r[1] {
			return nil, fmt.Errorf("summary.StitchRanges: window %d is fully consumed by its neighbors", i)
		}
		for _, p := range indexes[i][r[0]:r[1]] {
			if havePrev && !prev.less(p) {
				return nil, fmt.Errorf("summary.StitchRanges: stitched positions not strictly increasing at window %d", i)
			}
			prev, havePrev = p, true
		}
	}
	return ranges, nil
}

// Stitch merges the summaries of consecutive windows over one file into a
// single Summary, dropping the rows each window shares with its neighbors.
func Stitch(windows []*Summary) (*Summary, error) {
	if len(windows) == 0 {
		return &Summary{}, nil
	}
	indexes := make([][]RowPos, len(windows))
	for i, w := range windows {
		indexes[i] = w.Index
	}
	ranges, err := StitchRanges(indexes)
	if err != nil {
		return nil, err
	}
	out := &Summary{Path: windows[0].Path}
	for i, w := range windows {
		r := ranges[i]
		out.Counts = append(out.Counts, w.Counts[r[0]*NCol:r[1]*NCol]...)
		out.Index = append(out.Index, w.Index[r[0]:r[1]]...)
	}
	return out, nil
}
