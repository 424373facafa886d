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
	"context"
	"fmt"
	"io"
	"runtime"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
	"github.com/kshedden/gonpy"
)

// WriteSummaryTSV writes s as a TSV with one line per matrix row.  Row
// offsets stay 0-based, matching the binary formats.
func WriteSummaryTSV(s *Summary, w io.Writer) (err error) {
	outTSV := tsv.NewWriter(w)
	outTSV.WriteString("POS\tSUB\tA+\tA-\tC+\tC-\tG+\tG-\tT+\tT-\tDEL\tINS")
	if err = outTSV.EndLine(); err != nil {
		return
	}
	for i := 0; i < s.NumRows(); i++ {
		outTSV.WriteUint32(uint32(s.Index[i].Pos))
		outTSV.WriteUint32(uint32(s.Index[i].Sub))
		for _, v := range s.Row(i) {
			outTSV.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err = outTSV.EndLine(); err != nil {
			return
		}
	}
	if err = outTSV.Flush(); err != nil {
		return
	}
	return
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// WriteCountsNpy writes the count matrix as a float64 .npy array of shape
// (NumRows, NCol).
func WriteCountsNpy(s *Summary, w io.Writer) error {
	npw, err := gonpy.NewWriter(nopCloser{w})
	if err != nil {
		return err
	}
	npw.Shape = []int{s.NumRows(), NCol}
	return npw.WriteFloat64(s.Counts)
}

// WritePositionsNpy writes the position index as an int32 .npy array of
// shape (NumRows, 2), [i] = {pos, sub}.
func WritePositionsNpy(s *Summary, w io.Writer) error {
	flat := make([]int32, 0, 2*len(s.Index))
	for _, p := range s.Index {
		flat = append(flat, int32(p.Pos), int32(p.Sub))
	}
	npw, err := gonpy.NewWriter(nopCloser{w})
	if err != nil {
		return err
	}
	npw.Shape = []int{s.NumRows(), 2}
	return npw.WriteInt32(flat)
}

func createAndWrite(ctx context.Context, path string, write func(io.Writer) error) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return
	}
	defer file.CloseAndReport(ctx, dst, &err)
	err = write(dst.Writer(ctx))
	return
}

// Write writes s to outPrefix in the requested format: "npy" (a pair of
// .counts.npy/.positions.npy files), "rio", "tsv" or "tsv-bgz".
func Write(ctx context.Context, s *Summary, format, outPrefix string, parallelism int) (err error) {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	switch format {
	case "npy":
		if err = createAndWrite(ctx, outPrefix+".counts.npy", func(w io.Writer) error {
			return WriteCountsNpy(s, w)
		}); err != nil {
			return
		}
		if err = createAndWrite(ctx, outPrefix+".positions.npy", func(w io.Writer) error {
			return WritePositionsNpy(s, w)
		}); err != nil {
			return
		}
	case "rio":
		if err = createAndWrite(ctx, outPrefix+".summary.rio", func(w io.Writer) error {
			return WriteSummaryRio(s, w)
		}); err != nil {
			return
		}
	case "tsv", "tsv-bgz":
		path := outPrefix + ".summary.tsv"
		if format == "tsv-bgz" {
			path = path + ".gz"
		}
		var dst file.File
		if dst, err = file.Create(ctx, path); err != nil {
			return
		}
		defer file.CloseAndReport(ctx, dst, &err)
		if format == "tsv-bgz" {
			bgzfWriter := bgzf.NewWriter(dst.Writer(ctx), parallelism)
			defer func() {
				if e := bgzfWriter.Close(); e != nil && err == nil {
					err = e
				}
			}()
			if err = WriteSummaryTSV(s, bgzfWriter); err != nil {
				return
			}
		} else if err = WriteSummaryTSV(s, dst.Writer(ctx)); err != nil {
			return
		}
	default:
		return fmt.Errorf("summary.Write: unrecognized format= argument")
	}
	log.Printf("summary.Write: %d row(s) written as %s", s.NumRows(), format)
	return
}
