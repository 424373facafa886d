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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/variantml/bio/variant"
)

const (
	vcfPathsHeader = "SourceVCFs"
	trailerVersion = 1
)

func init() {
	recordiozstd.Init()
}

// cutAndAdvance returns s[offset:offset+pieceLen] and increments offset by
// pieceLen.  Writing it this way keeps the compiler's bounds-checks out of
// the marshalling inner loops.
func cutAndAdvance(offset *int, s []byte, pieceLen int) []byte {
	tmpSlice := s[(*offset):]
	*offset += pieceLen
	return tmpSlice[:pieceLen]
}

func putString(offset *int, t []byte, s string) {
	binary.LittleEndian.PutUint32(cutAndAdvance(offset, t, 4), uint32(len(s)))
	copy(cutAndAdvance(offset, t, len(s)), s)
}

func getString(offset *int, in []byte) string {
	n := int(binary.LittleEndian.Uint32(cutAndAdvance(offset, in, 4)))
	return string(cutAndAdvance(offset, in, n))
}

// Serialized format:
//   [0..4): zygosity
//   [4..8): type
//   [8..16): pos
//   [16..24): qual
//   [24]: hasQual
//   then chrom/id/ref/alt/filter/info/format/vcf/bam, each stored as a
//     4-byte length followed by the bytes
//   then the sample count in 4 bytes, then each sample column stored like a
//     string field
// All integers are little-endian.  Simplicity beats compactness here since
// every use is bundled with the zstd transformer anyway.
const variantFixedLen = 25

func marshalVariant(scratch []byte, v interface{}) ([]byte, error) {
	rec := v.(*variant.Variant)
	// Compute length up-front so that, if we need to allocate, we only do so
	// once.
	bytesReq := variantFixedLen + 4
	for _, s := range []string{rec.Chrom, rec.ID, rec.Ref, rec.Alt, rec.Filter, rec.Info, rec.Format, rec.VCF, rec.BAM} {
		bytesReq += 4 + len(s)
	}
	for _, s := range rec.Samples {
		bytesReq += 4 + len(s)
	}
	t := scratch
	if cap(t) < bytesReq {
		t = make([]byte, bytesReq)
	}
	t = t[:bytesReq]

	binary.LittleEndian.PutUint32(t[:4], uint32(rec.Zygosity))
	binary.LittleEndian.PutUint32(t[4:8], uint32(rec.Type))
	binary.LittleEndian.PutUint64(t[8:16], uint64(rec.Pos))
	binary.LittleEndian.PutUint64(t[16:24], math.Float64bits(rec.Qual))
	t[24] = 0
	if rec.HasQual {
		t[24] = 1
	}
	offset := variantFixedLen
	putString(&offset, t, rec.Chrom)
	putString(&offset, t, rec.ID)
	putString(&offset, t, rec.Ref)
	putString(&offset, t, rec.Alt)
	putString(&offset, t, rec.Filter)
	putString(&offset, t, rec.Info)
	putString(&offset, t, rec.Format)
	putString(&offset, t, rec.VCF)
	putString(&offset, t, rec.BAM)
	binary.LittleEndian.PutUint32(cutAndAdvance(&offset, t, 4), uint32(len(rec.Samples)))
	for _, s := range rec.Samples {
		putString(&offset, t, s)
	}
	return t, nil
}

func unmarshalVariant(in []byte) (out interface{}, err error) {
	rec := &variant.Variant{}
	rec.Zygosity = variant.Zygosity(binary.LittleEndian.Uint32(in[:4]))
	rec.Type = variant.Type(binary.LittleEndian.Uint32(in[4:8]))
	rec.Pos = int64(binary.LittleEndian.Uint64(in[8:16]))
	rec.Qual = math.Float64frombits(binary.LittleEndian.Uint64(in[16:24]))
	rec.HasQual = in[24] != 0
	offset := variantFixedLen
	rec.Chrom = getString(&offset, in)
	rec.ID = getString(&offset, in)
	rec.Ref = getString(&offset, in)
	rec.Alt = getString(&offset, in)
	rec.Filter = getString(&offset, in)
	rec.Info = getString(&offset, in)
	rec.Format = getString(&offset, in)
	rec.VCF = getString(&offset, in)
	rec.BAM = getString(&offset, in)
	numSamples := int(binary.LittleEndian.Uint32(cutAndAdvance(&offset, in, 4)))
	for i := 0; i < numSamples; i++ {
		rec.Samples = append(rec.Samples, getString(&offset, in))
	}
	return rec, nil
}

// WriteVariantsRio writes the given labeled variants to the given writer,
// using recordio.  The source VCF paths are stored in the file header.
func WriteVariantsRio(variants []variant.Variant, vcfPaths []string, out io.Writer) error {
	recordWriter := recordio.NewWriter(out, recordio.WriterOpts{
		Marshal:      marshalVariant,
		Transformers: []string{recordiozstd.Name},
	})
	recordWriter.AddHeader(vcfPathsHeader, strings.Join(vcfPaths, "\000"))
	recordWriter.AddHeader(recordio.KeyTrailer, true)
	for i := range variants {
		recordWriter.Append(&variants[i])
	}
	recordWriter.SetTrailer(variantsRioTrailer(len(variants)))
	return recordWriter.Finish()
}

func variantsRioTrailer(numVariants int) []byte {
	var buffer bytes.Buffer
	if err := binary.Write(&buffer, binary.LittleEndian, int64(trailerVersion)); err != nil {
		panic("couldn't write trailer version")
	}
	if err := binary.Write(&buffer, binary.LittleEndian, int64(numVariants)); err != nil {
		panic("couldn't write numVariants to trailer")
	}
	return buffer.Bytes()
}

func parseVariantsTrailer(trailer []byte) (int64, error) {
	r := bytes.NewReader(trailer)
	var version, numVariants int64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	if version != trailerVersion {
		return 0, fmt.Errorf("unrecognized trailer version: got %d, want %d", version, trailerVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &numVariants); err != nil {
		return 0, err
	}
	return numVariants, nil
}

// ReadVariantsRio reads labeled variants from a recordio file written by
// WriteVariantsRio.
func ReadVariantsRio(rs io.ReadSeeker) (variants []variant.Variant, vcfPaths []string, err error) {
	scanner := recordio.NewScanner(rs, recordio.ScannerOpts{
		Unmarshal: unmarshalVariant,
	})
	if len(scanner.Trailer()) != 0 {
		var numVariants int64
		if numVariants, err = parseVariantsTrailer(scanner.Trailer()); err != nil {
			return
		}
		variants = make([]variant.Variant, 0, numVariants)
	}

	hdr := scanner.Header()
	for _, kv := range hdr {
		switch kv.Key {
		case vcfPathsHeader:
			packedPaths := kv.Value.(string)
			if packedPaths != "" {
				vcfPaths = strings.Split(packedPaths, "\000")
			}
			// Cannot return an error on unrecognized key since recordio can write its own.
		}
	}

	for scanner.Scan() {
		variants = append(variants, *scanner.Get().(*variant.Variant))
	}
	err = scanner.Err()
	return
}
