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
bio-vcf-labels loads truth variants from bgzip-compressed, tabix-indexed
single-sample VCFs, labels each record with its zygosity and variant type,
and writes the labeled set for downstream model training.

Each positional argument names one input as "vcfpath,bampath" or
"vcfpath,bampath,fp"; the trailing "fp" marks every variant from that VCF
as a false positive (zygosity NO_VARIANT).
*/

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/variantml/bio/label"
)

var (
	format      = flag.String("format", "rio", "Output format; 'rio', 'tsv' and 'tsv-bgz' supported")
	outPrefix   = flag.String("out", "bio-vcf-labels", "Output path prefix")
	parallelism = flag.Int("parallelism", 0, "Maximum number of simultaneous bgzf-compression shards for tsv-bgz output; 0 = runtime.NumCPU()")
)

func bioVcfLabelsUsage() {
	fmt.Printf("Usage: %s [OPTIONS] vcfpath,bampath[,fp] [vcfpath,bampath[,fp] ...]\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioVcfLabelsUsage
	shutdown := grail.Init()
	defer shutdown()

	allArgs := flag.Args()
	nPositionalArgs := flag.NArg()
	positionalArgs := allArgs[len(allArgs)-nPositionalArgs:]
	if nPositionalArgs < 1 {
		log.Fatalf("Missing positional arguments (at least one vcfpath,bampath[,fp] required); please check flag syntax: '%s'", strings.Join(positionalArgs, " "))
	}
	inputs := make([]label.VcfBamPath, 0, nPositionalArgs)
	for _, arg := range positionalArgs {
		fields := strings.Split(arg, ",")
		if (len(fields) < 2) || (len(fields) > 3) {
			log.Fatalf("Invalid positional argument '%s' (vcfpath,bampath[,fp] expected)", arg)
		}
		input := label.VcfBamPath{
			VCF: fields[0],
			BAM: fields[1],
		}
		if len(fields) == 3 {
			if fields[2] != "fp" {
				log.Fatalf("Invalid positional argument '%s' (third field must be 'fp')", arg)
			}
			input.IsFalsePositive = true
		}
		inputs = append(inputs, input)
	}
	ctx := vcontext.Background()
	loader, err := label.New(ctx, inputs)
	if err != nil {
		log.Panicf("%v", err)
	}
	log.Printf("bio-vcf-labels: loaded %d variant(s) from %d VCF(s)", loader.Len(), len(inputs))
	if err = label.Write(ctx, loader, *format, *outPrefix, *parallelism); err != nil {
		log.Panicf("%v", err)
	}
	log.Debug.Printf("exiting")
}
