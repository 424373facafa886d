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

// Package label loads ground-truth variant labels for model training from
// genotyped VCF files.
//
// Each input is a (VCF, BAM) path pair, optionally marked as a false
// positive set.  The VCFs must be bgzip-compressed, tabix-indexed and carry
// exactly one sample.  Records that are not single-sample SNP calls are
// skipped with a warning; surviving records become variant.Variant values,
// one per alternate allele, in file order.
package label

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
	"github.com/variantml/bio/encoding/vcf"
	"github.com/variantml/bio/variant"
)

// VcfBamPath names one ground-truth input: a compressed and indexed VCF of
// genotyped variants plus the BAM its reads came from.  IsFalsePositive
// marks inputs whose records describe known non-variant sites.
type VcfBamPath struct {
	VCF             string
	BAM             string
	IsFalsePositive bool
}

// Loader holds the Variants loaded from an ordered list of VCF/BAM inputs.
// It is immutable after New and safe for concurrent readers.
type Loader struct {
	variants []variant.Variant
	vcfPaths []string
}

// New loads every input in order.  Malformed inputs (wrong compression,
// missing index, not exactly one sample, unreadable records) fail the whole
// load; individually unusable records are skipped with a warning.
func New(ctx context.Context, inputs []VcfBamPath) (*Loader, error) {
	l := &Loader{}
	for _, in := range inputs {
		if err := l.load(ctx, in); err != nil {
			return nil, err
		}
		l.vcfPaths = append(l.vcfPaths, in.VCF)
	}
	return l, nil
}

func (l *Loader) load(ctx context.Context, in VcfBamPath) (err error) {
	if !strings.HasSuffix(in.VCF, ".vcf.gz") {
		return errors.Errorf("label.New: %s: VCF inputs must be bgzip-compressed .vcf.gz files", in.VCF)
	}
	if _, err = file.Stat(ctx, in.VCF+".tbi"); err != nil {
		return errors.Wrapf(err, "label.New: %s: missing tabix index", in.VCF)
	}
	f, err := vcf.Open(ctx, in.VCF)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if n := len(f.SampleNames()); n != 1 {
		return errors.Errorf("label.New: %s: expected exactly one sample, found %d", in.VCF, n)
	}
	for {
		var rec *vcf.Record
		if rec, err = f.Read(); err == io.EOF {
			err = nil
			return
		} else if err != nil {
			return
		}
		if !rec.IsSNP() {
			log.Printf("label.New: warning: skipping non-SNP record at %s:%d in %s", rec.Chrom, rec.Pos, in.VCF)
			continue
		}
		if rec.NumCalled() == 0 {
			log.Printf("label.New: warning: skipping record without a called genotype at %s:%d in %s", rec.Chrom, rec.Pos, in.VCF)
			continue
		}
		if len(rec.Alts) != 1 {
			log.Printf("label.New: warning: skipping multi-allelic record at %s:%d in %s", rec.Chrom, rec.Pos, in.VCF)
			continue
		}
		zygosity, err2 := classifyZygosity(rec, in.IsFalsePositive)
		if err2 != nil {
			return errors.Wrapf(err2, "label.New: %s:%d in %s", rec.Chrom, rec.Pos, in.VCF)
		}
		for _, alt := range rec.Alts {
			typ, err2 := variant.TypeOf(rec.Ref, alt)
			if err2 != nil {
				return errors.Wrapf(err2, "label.New: %s:%d in %s", rec.Chrom, rec.Pos, in.VCF)
			}
			l.variants = append(l.variants, variant.Variant{
				Chrom:    rec.Chrom,
				Pos:      rec.Pos,
				ID:       rec.ID,
				Ref:      rec.Ref,
				Alt:      alt,
				Qual:     rec.Qual,
				HasQual:  rec.HasQual,
				Filter:   rec.Filter,
				Info:     rec.InfoString(),
				Format:   rec.Format,
				Samples:  append([]string(nil), rec.Samples...),
				Zygosity: zygosity,
				Type:     typ,
				VCF:      in.VCF,
				BAM:      in.BAM,
			})
		}
	}
}

// classifyZygosity maps a record's (single-sample) genotype counts to a
// Zygosity.  False positive inputs always classify as NoVariant.
func classifyZygosity(rec *vcf.Record, isFalsePositive bool) (variant.Zygosity, error) {
	if isFalsePositive {
		return variant.NoVariant, nil
	}
	if rec.NumHet() > 0 {
		return variant.Heterozygous, nil
	}
	if rec.NumHomAlt() > 0 {
		return variant.Homozygous, nil
	}
	return variant.NoVariant, errors.Errorf("unsupported zygosity (genotype %q)", rec.Samples[0])
}

// Len returns the number of loaded Variants.
func (l *Loader) Len() int { return len(l.variants) }

// At returns the i'th Variant in load order.
func (l *Loader) At(i int) variant.Variant { return l.variants[i] }

// VCFPaths returns the paths of the loaded VCFs, in input order.
func (l *Loader) VCFPaths() []string { return l.vcfPaths }

// Iter returns a fresh iterator positioned before the first Variant.
// Iterators are independent; any number may run concurrently.
func (l *Loader) Iter() *Iterator { return &Iterator{loader: l} }

// Iterator is a restartable cursor over a Loader's Variants.
type Iterator struct {
	loader *Loader
	next   int
}

// Next returns the next Variant.  It returns io.EOF after the last one.
func (it *Iterator) Next() (variant.Variant, error) {
	if it.next >= it.loader.Len() {
		return variant.Variant{}, io.EOF
	}
	v := it.loader.At(it.next)
	it.next++
	return v, nil
}

// Reset rewinds the iterator to the first Variant.
func (it *Iterator) Reset() { it.next = 0 }
