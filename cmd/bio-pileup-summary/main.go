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
package main

/*
bio-pileup-summary encodes a samtools mpileup file into a per-position
base/strand count matrix plus an aligned position index, for consumption by
downstream model training.

The encoded rows default to the whole file; -start/-end restrict them to a
0-based half-open row range, while -bed/-contig restrict them to the rows
whose reference positions fall inside a BED interval union.  With -window,
rows are encoded as overlapping windows in parallel and stitched back into a
single matrix.
*/

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/vcontext"
	"github.com/variantml/bio/interval"
	"github.com/variantml/bio/pileup"
	"github.com/variantml/bio/pileup/summary"
)

var (
	bedPath     = flag.String("bed", "", "Input BED path restricting encoding to the listed intervals; requires -contig, excludes -start/-end")
	contig      = flag.String("contig", "", "Contig whose pileup rows the -bed intervals select")
	endRow      = flag.Int("end", -1, "0-based row offset one past the last row to encode; -1 = end of file")
	exclude     = flag.Bool("exclude-no-coverage", summary.DefaultOpts.ExcludeNoCoveragePositions, "Drop rows with no countable read observations")
	format      = flag.String("format", "npy", "Output format; 'npy', 'rio', 'tsv' and 'tsv-bgz' supported")
	normalize   = flag.Bool("normalize", summary.DefaultOpts.NormalizeCounts, "Divide each output row by its sum")
	outPrefix   = flag.String("out", "bio-pileup-summary", "Output path prefix")
	overlap     = flag.Int("overlap", 0, "Number of rows adjacent windows share; requires -window")
	parallelism = flag.Int("parallelism", 0, "Maximum number of simultaneous encoding jobs to launch; 0 = runtime.NumCPU()")
	startRow    = flag.Int("start", 0, "0-based row offset of the first row to encode")
	windowSize  = flag.Int("window", 0, "Number of rows per encoding window; 0 = one window per region")
)

func bioPileupSummaryUsage() {
	fmt.Printf("Usage: %s [OPTIONS] pileuppath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioPileupSummaryUsage
	shutdown := grail.Init()
	defer shutdown()

	allArgs := flag.Args()
	nPositionalArgs := flag.NArg()
	positionalArgs := allArgs[len(allArgs)-nPositionalArgs:]
	if nPositionalArgs != 1 {
		if nPositionalArgs < 1 {
			log.Fatalf("Missing positional argument (pileuppath required); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
		} else {
			log.Fatalf("Too many positional arguments (only pileuppath expected); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
		}
	}
	pileupPath := positionalArgs[0]
	if (*bedPath != "") != (*contig != "") {
		log.Fatalf("-bed and -contig must be used together")
	}
	if (*bedPath != "") && ((*startRow != 0) || (*endRow != -1)) {
		log.Fatalf("-start/-end and -bed flags can't be used together")
	}
	if (*overlap != 0) && (*windowSize == 0) {
		log.Fatalf("-overlap requires -window")
	}

	ctx := vcontext.Background()
	src, err := pileup.ReadFile(ctx, pileupPath)
	if err != nil {
		log.Panicf("%v", err)
	}

	var regions []pileup.FileRegion
	if *bedPath != "" {
		var bedUnion interval.BEDUnion
		if bedUnion, err = interval.NewBEDUnionFromPath(*bedPath, interval.NewBEDOpts{}); err != nil {
			log.Panicf("%v", err)
		}
		rowStart, rowEnd := src.ContigRows(*contig)
		scanner := bedUnion.Scanner(*contig)
		var intervalStart, intervalEnd interval.PosType
		for scanner.Scan(&intervalStart, &intervalEnd, interval.PosTypeMax) {
			// BED intervals are 0-based while pileup positions are 1-based.
			lo := src.SearchPos(rowStart, rowEnd, intervalStart+1)
			hi := src.SearchPos(rowStart, rowEnd, intervalEnd+1)
			if lo < hi {
				regions = append(regions, pileup.FileRegion{Path: pileupPath, StartPos: lo, EndPos: hi})
			}
		}
	} else {
		last := pileup.PosType(*endRow)
		if *endRow == -1 {
			last = pileup.PosType(src.NumSites())
		}
		regions = append(regions, pileup.FileRegion{
			Path:     pileupPath,
			StartPos: pileup.PosType(*startRow),
			EndPos:   last,
		})
	}

	windows := regions
	if *windowSize > 0 {
		windows = nil
		for _, region := range regions {
			var split []pileup.FileRegion
			if split, err = summary.SplitRegion(region, summary.PosType(*windowSize), summary.PosType(*overlap)); err != nil {
				log.Panicf("%v", err)
			}
			windows = append(windows, split...)
		}
	}
	log.Printf("bio-pileup-summary: encoding %d window(s) over %d region(s)", len(windows), len(regions))

	enc := summary.New(summary.Opts{
		ExcludeNoCoveragePositions: *exclude,
		NormalizeCounts:            *normalize,
	})
	results := make([]*summary.Summary, len(windows))
	if len(windows) > 0 {
		par := *parallelism
		if par <= 0 {
			par = runtime.NumCPU()
		}
		if par > len(windows) {
			par = len(windows)
		}
		err = traverse.Each(par, func(jobIdx int) error {
			startIdx := (jobIdx * len(windows)) / par
			endIdx := ((jobIdx + 1) * len(windows)) / par
			for i := startIdx; i < endIdx; i++ {
				s, e := enc.EncodeSource(ctx, src, windows[i].StartPos, windows[i].EndPos)
				if e != nil {
					return e
				}
				s.Path = pileupPath
				results[i] = s
			}
			return nil
		})
		if err != nil {
			log.Panicf("%v", err)
		}
	}
	merged, err := summary.Stitch(results)
	if err != nil {
		log.Panicf("%v", err)
	}
	merged.Path = pileupPath
	if err = summary.Write(ctx, merged, *format, *outPrefix, *parallelism); err != nil {
		log.Panicf("%v", err)
	}
	log.Debug.Printf("exiting")
}
