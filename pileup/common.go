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
	"github.com/variantml/bio/interval"
)

// Common pileup components.

// PosType is the integer type used to represent genomic positions and pileup
// row offsets.
type PosType = interval.PosType

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = interval.PosTypeMax

// These constants are the natural values for A/C/G/T in a packed 2-bit
// representation (useful anywhere we don't have to worry about Ns).

const (
	// BaseA represents an A base.
	BaseA byte = iota
	// BaseC represents an C base.
	BaseC
	// BaseG represents an G base.
	BaseG
	// BaseT represents an T base.
	BaseT
	// BaseX is a catch-all.
	BaseX
)

const (
	// NBase is the number of regular base types.
	NBase = 4
	// NBaseEnum counts BaseX as well as the regular base types.
	NBaseEnum = 5
)

// EnumToASCIITable is the A/C/G/T/X -> ASCII mapping, with X rendered as 'N'.
var EnumToASCIITable = [...]byte{'A', 'C', 'G', 'T', 'N'}

// StrandType describes which strand a base call is aligned to.
type StrandType byte

const (
	// StrandFwd means the call came from a read aligned to the forward strand;
	// pileup text renders these as uppercase base characters.
	StrandFwd StrandType = iota
	// StrandRev means the call came from a reverse-strand read; pileup text
	// renders these as lowercase base characters.
	StrandRev
	// StrandNone means no strand applies (returned for non-base characters).
	StrandNone
)

// NStrand is the number of real strands; StrandNone is excluded.
const NStrand = 2

// StrandTypeToASCIITable is the StrandType -> ASCII mapping.
var StrandTypeToASCIITable = [...]byte{'+', '-', '.'}

const invalidBase = 0xff

// asciiToBaseTable and asciiToStrandTable map pileup base characters
// (ACGTN, either case) to their base enum and strand; all other characters
// map to invalidBase / StrandNone.
var (
	asciiToBaseTable   [256]byte
	asciiToStrandTable [256]StrandType
)

func init() {
	for i := range asciiToBaseTable {
		asciiToBaseTable[i] = invalidBase
		asciiToStrandTable[i] = StrandNone
	}
	enums := [...]byte{BaseA, BaseC, BaseG, BaseT, BaseX}
	for i, c := range []byte("ACGTN") {
		asciiToBaseTable[c] = enums[i]
		asciiToStrandTable[c] = StrandFwd
	}
	for i, c := range []byte("acgtn") {
		asciiToBaseTable[c] = enums[i]
		asciiToStrandTable[c] = StrandRev
	}
}

// BaseStrand maps a pileup base character to its A/C/G/T/X enum and strand.
// ok is false for characters outside ACGTNacgtn.
func BaseStrand(c byte) (base byte, strand StrandType, ok bool) {
	base = asciiToBaseTable[c]
	if base == invalidBase {
		return 0, StrandNone, false
	}
	return base, asciiToStrandTable[c], true
}
