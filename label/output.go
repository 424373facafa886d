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
package label

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
	"github.com/variantml/bio/variant"
)

// WriteVariantsTSV writes labeled variants as a TSV with one row per
// variant.  Positions stay 1-based, as in the source VCFs.
func WriteVariantsTSV(variants []variant.Variant, w io.Writer) (err error) {
	outTSV := tsv.NewWriter(w)
	outTSV.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tSAMPLE\tZYGOSITY\tTYPE\tVCF\tBAM")
	if err = outTSV.EndLine(); err != nil {
		return
	}
	for i := range variants {
		v := &variants[i]
		outTSV.WriteString(v.Chrom)
		outTSV.WriteString(strconv.FormatInt(v.Pos, 10))
		outTSV.WriteString(v.ID)
		outTSV.WriteString(v.Ref)
		outTSV.WriteString(v.Alt)
		if v.HasQual {
			outTSV.WriteString(strconv.FormatFloat(v.Qual, 'g', -1, 64))
		} else {
			outTSV.WriteString(".")
		}
		outTSV.WriteString(v.Filter)
		outTSV.WriteString(v.Info)
		outTSV.WriteString(v.Format)
		outTSV.WriteString(joinSamples(v.Samples))
		outTSV.WriteString(v.Zygosity.String())
		outTSV.WriteString(v.Type.String())
		outTSV.WriteString(v.VCF)
		outTSV.WriteString(v.BAM)
		if err = outTSV.EndLine(); err != nil {
			return
		}
	}
	if err = outTSV.Flush(); err != nil {
		return
	}
	return
}

func joinSamples(samples []string) string {
	switch len(samples) {
	case 0:
		return "."
	case 1:
		return samples[0]
	}
	joined := samples[0]
	for _, s := range samples[1:] {
		joined += ";" + s
	}
	return joined
}

// Write writes the loader's variants to outPrefix in the requested format:
// "rio", "tsv" or "tsv-bgz".
func Write(ctx context.Context, l *Loader, format, outPrefix string, parallelism int) (err error) {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	switch format {
	case "rio":
		var dst file.File
		if dst, err = file.Create(ctx, outPrefix+".labels.rio"); err != nil {
			return
		}
		defer file.CloseAndReport(ctx, dst, &err)
		if err = WriteVariantsRio(l.variants, l.vcfPaths, dst.Writer(ctx)); err != nil {
			return
		}
	case "tsv", "tsv-bgz":
		path := outPrefix + ".labels.tsv"
		if format == "tsv-bgz" {
			path = path + ".gz"
		}
		var dst file.File
		if dst, err = file.Create(ctx, path); err != nil {
			return
		}
		defer file.CloseAndReport(ctx, dst, &err)
		w := dst.Writer(ctx)
		if format == "tsv-bgz" {
			bgzfWriter := bgzf.NewWriter(w, parallelism)
			defer func() {
				if e := bgzfWriter.Close(); e != nil && err == nil {
					err = e
				}
			}()
			if err = WriteVariantsTSV(l.variants, bgzfWriter); err != nil {
				return
			}
		} else if err = WriteVariantsTSV(l.variants, w); err != nil {
			return
		}
	default:
		return fmt.Errorf("label.Write: unrecognized format= argument")
	}
	log.Printf("label.Write: %s output written", format)
	return
}
