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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
)

const (
	pathHeader     = "SourcePileup"
	trailerVersion = 1

	// One serialized row: pos, sub, then NCol little-endian float64 counts.
	rowBytes = 8 + NCol*8
)

func init() {
	recordiozstd.Init()
}

type rioRow struct {
	pos    RowPos
	counts [NCol]float64
}

func marshalSummaryRow(scratch []byte, v interface{}) ([]byte, error) {
	t := scratch
	if len(t) < rowBytes {
		t = make([]byte, rowBytes)
	}
	t = t[:rowBytes]

	row := v.(*rioRow)
	binary.LittleEndian.PutUint32(t[:4], uint32(row.pos.Pos))
	binary.LittleEndian.PutUint32(t[4:8], uint32(row.pos.Sub))
	for i := 0; i < NCol; i++ {
		binary.LittleEndian.PutUint64(t[8+i*8:16+i*8], math.Float64bits(row.counts[i]))
	}
	return t, nil
}

// WriteSummaryRio writes s to the given writer, using recordio.  The source
// pileup path is stored in the file header.
func WriteSummaryRio(s *Summary, out io.Writer) error {
	recordWriter := recordio.NewWriter(out, recordio.WriterOpts{
		Marshal:      marshalSummaryRow,
		Transformers: []string{recordiozstd.Name},
	})
	recordWriter.AddHeader(pathHeader, s.Path)
	recordWriter.AddHeader(recordio.KeyTrailer, true)
	rows := make([]rioRow, s.NumRows())
	for i := range rows {
		rows[i].pos = s.Index[i]
		copy(rows[i].counts[:], s.Row(i))
		recordWriter.Append(&rows[i])
	}
	recordWriter.SetTrailer(summaryRioTrailer(s.NumRows()))
	return recordWriter.Finish()
}

func summaryRioTrailer(numRows int) []byte {
	var buffer bytes.Buffer
	if err := binary.Write(&buffer, binary.LittleEndian, int64(trailerVersion)); err != nil {
		panic("couldn't write trailer version")
	}
	if err := binary.Write(&buffer, binary.LittleEndian, int64(numRows)); err != nil {
		panic("couldn't write numRows to trailer")
	}
	return buffer.Bytes()
}

func parseSummaryTrailer(trailer []byte) (int64, error) {
	r := bytes.NewReader(trailer)
	var version, numRows int64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	if version != trailerVersion {
		return 0, fmt.Errorf("unrecognized trailer version: got %d, want %d", version, trailerVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &numRows); err != nil {
		return 0, err
	}
	return numRows, nil
}

// summaryRowUnmarshaller allocates memory in large blocks during
// unmarshalling, to prevent contention with other goroutines.
type summaryRowUnmarshaller struct {
	rows   []rioRow
	offset int
}

func (u *summaryRowUnmarshaller) init(size int64) {
	if u.rows != nil {
		panic("tried to initialize when already initialized")
	}
	u.rows = make([]rioRow, size)
}

func (u *summaryRowUnmarshaller) unmarshalSummaryRow(in []byte) (out interface{}, err error) {
	in = in[:rowBytes] // help the bounds-checker
	if u.offset == len(u.rows) {
		u.rows = append(u.rows, rioRow{})
	}
	row := &u.rows[u.offset]
	u.offset++
	row.pos.Pos = PosType(binary.LittleEndian.Uint32(in[:4]))
	row.pos.Sub = PosType(binary.LittleEndian.Uint32(in[4:8]))
	for i := 0; i < NCol; i++ {
		row.counts[i] = math.Float64frombits(binary.LittleEndian.Uint64(in[8+i*8 : 16+i*8]))
	}
	return row, nil
}

// ReadSummaryRio reads a Summary from a recordio file written by
// WriteSummaryRio.
func ReadSummaryRio(rs io.ReadSeeker) (s *Summary, err error) {
	var unmarshaller summaryRowUnmarshaller
	scanner := recordio.NewScanner(rs, recordio.ScannerOpts{
		Unmarshal: unmarshaller.unmarshalSummaryRow,
	})
	s = &Summary{}
	if len(scanner.Trailer()) != 0 {
		var numRows int64
		if numRows, err = parseSummaryTrailer(scanner.Trailer()); err != nil {
			return nil, err
		}
		unmarshaller.init(numRows)
		s.Counts = make([]float64, 0, numRows*NCol)
		s.Index = make([]RowPos, 0, numRows)
	}

	hdr := scanner.Header()
	for _, kv := range hdr {
		switch kv.Key {
		case pathHeader:
			s.Path = kv.Value.(string)
			// Cannot return an error on unrecognized key since recordio can write its own.
		}
	}

	for scanner.Scan() {
		row := scanner.Get().(*rioRow)
		s.Counts = append(s.Counts, row.counts[:]...)
		s.Index = append(s.Index, row.pos)
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
