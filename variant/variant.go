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

// Package variant defines the labeled-variant record produced by the ground
// truth loaders and consumed by downstream encoders.
package variant

import (
	"fmt"
)

// Zygosity classifies the sample genotype backing a variant record.
type Zygosity int32

const (
	// NoVariant marks a record drawn from a false positive set; the sample
	// is treated as carrying no variant at the site.
	NoVariant Zygosity = iota
	// Heterozygous means the called alleles differ from each other.
	Heterozygous
	// Homozygous means every called allele is the same non-reference allele.
	Homozygous
)

// String implements fmt.Stringer.
func (z Zygosity) String() string {
	switch z {
	case NoVariant:
		return "NO_VARIANT"
	case Heterozygous:
		return "HETEROZYGOUS"
	case Homozygous:
		return "HOMOZYGOUS"
	}
	return fmt.Sprintf("Zygosity(%d)", int32(z))
}

// Type classifies the REF -> ALT shape of a variant record.
type Type int32

const (
	// SNP is a single-base substitution.
	SNP Type = iota
	// Insertion has a longer ALT than REF.
	Insertion
	// Deletion has a shorter ALT than REF.
	Deletion
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case SNP:
		return "SNP"
	case Insertion:
		return "INSERTION"
	case Deletion:
		return "DELETION"
	}
	return fmt.Sprintf("Type(%d)", int32(t))
}

// TypeOf classifies a REF/ALT allele pair.  Same-length multi-base pairs
// have no classification and are rejected.
func TypeOf(ref, alt string) (Type, error) {
	switch {
	case len(ref) == 1 && len(alt) == 1:
		return SNP, nil
	case len(alt) > len(ref):
		return Insertion, nil
	case len(alt) < len(ref):
		return Deletion, nil
	}
	return SNP, fmt.Errorf("variant.TypeOf: unsupported REF %q -> ALT %q shape", ref, alt)
}

// Variant is one alternate allele observed at one site in one sample,
// together with the source files it was drawn from.
type Variant struct {
	// Chrom is the reference sequence name.
	Chrom string
	// Pos is the 1-based reference position from the VCF.
	Pos int64
	// ID is the VCF ID column ("." when absent).
	ID string
	// Ref is the reference allele.
	Ref string
	// Alt is the single alternate allele this record covers.
	Alt string
	// Qual is the phred-scaled quality; meaningful only when HasQual is set.
	Qual    float64
	HasQual bool
	// Filter is the VCF FILTER column.
	Filter string
	// Info is the flattened one-line rendering of the VCF INFO column.
	Info string
	// Format is the VCF FORMAT column.
	Format string
	// Samples holds the raw per-sample columns.
	Samples []string
	// Zygosity is the genotype classification of the (single) sample.
	Zygosity Zygosity
	// Type is the REF -> ALT shape classification.
	Type Type
	// VCF and BAM are the paths of the input pair the record came from.
	VCF string
	BAM string
}
