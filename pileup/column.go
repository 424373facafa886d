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
	"fmt"
	"strconv"
	"strings"
)

// This file implements a parser for the base column of `samtools mpileup`
// text output.  The column is a concatenation of per-read tokens:
//
//   ACGTN      base call, uppercase for forward-strand reads, lowercase for
//              reverse-strand reads
//   *          deletion placeholder on a forward-strand read
//   #          deletion placeholder on a reverse-strand read when interior;
//              a bare column terminator when it is the last character
//   +<n><seq>  insertion of <n> bases after this position, case as above
//   -<n><seq>  deletion of the next <n> reference bases, case as above
//   ^<c>       read start; <c> is mapping quality + 33 and can be any byte
//   $          read end
//
// The run length <n> can span multiple digits, so the grammar cannot be
// tokenized one character at a time.

// CallKind distinguishes the token types of a pileup column.
type CallKind byte

const (
	// CallBase is a single aligned base (ACGTN, either case).
	CallBase CallKind = iota
	// CallGap is a deletion placeholder covering this position ('*' or an
	// interior '#').
	CallGap
	// CallInsertion is a +<n><seq> token.
	CallInsertion
	// CallDeletionRun is a -<n><seq> token announcing deletions at the
	// following positions.
	CallDeletionRun
	// CallReadStart is a ^<mapq> token.
	CallReadStart
	// CallReadEnd is a $ token.
	CallReadEnd
)

// Call is one parsed token of a pileup column.
type Call struct {
	Kind CallKind
	// Char is the literal character for CallBase ('A', 'g', ...) and CallGap
	// ('*' or '#') calls.  For CallReadStart it is the mapping quality byte.
	Char byte
	// Seq is the inserted or deleted sequence for CallInsertion and
	// CallDeletionRun calls, case preserved from the input.
	Seq string
	// AfterGap marks an insertion whose nearest preceding base-class call is
	// a deletion placeholder rather than a regular base.
	AfterGap bool
}

// BaseStrand maps a CallBase call to its A/C/G/T/X enum and strand.
func (c Call) BaseStrand() (byte, StrandType, bool) {
	return BaseStrand(c.Char)
}

// GapStrand returns the strand of a CallGap call: '*' is a forward-strand
// placeholder, '#' a reverse-strand one.
func (c Call) GapStrand() StrandType {
	if c.Char == '#' {
		return StrandRev
	}
	return StrandFwd
}

// Column is one fully parsed pileup base column.
type Column struct {
	Calls []Call
	// Terminated records whether the raw text carried a trailing '#'
	// terminator.  String() does not reproduce it.
	Terminated bool
}

// ParseColumn parses the base column of one mpileup line.
func ParseColumn(text string) (Column, error) {
	var col Column
	n := len(text)
	for i := 0; i < n; {
		c := text[i]
		switch {
		case asciiToBaseTable[c] != invalidBase:
			col.Calls = append(col.Calls, Call{Kind: CallBase, Char: c})
			i++
		case c == '*':
			col.Calls = append(col.Calls, Call{Kind: CallGap, Char: c})
			i++
		case c == '#':
			if i == n-1 {
				col.Terminated = true
			} else {
				col.Calls = append(col.Calls, Call{Kind: CallGap, Char: c})
			}
			i++
		case c == '+':
			seq, next, err := parseIndelRun(text, i)
			if err != nil {
				return Column{}, err
			}
			col.Calls = append(col.Calls, Call{
				Kind:     CallInsertion,
				Seq:      seq,
				AfterGap: lastBaseClassIsGap(col.Calls),
			})
			i = next
		case c == '-':
			seq, next, err := parseIndelRun(text, i)
			if err != nil {
				return Column{}, err
			}
			col.Calls = append(col.Calls, Call{Kind: CallDeletionRun, Seq: seq})
			i = next
		case c == '^':
			if i+1 >= n {
				return Column{}, fmt.Errorf("pileup.ParseColumn: '^' at offset %d lacks a mapping quality byte", i)
			}
			// The next byte is a quality, not a token, even when it collides
			// with the token vocabulary.
			col.Calls = append(col.Calls, Call{Kind: CallReadStart, Char: text[i+1]})
			i += 2
		case c == '$':
			col.Calls = append(col.Calls, Call{Kind: CallReadEnd})
			i++
		default:
			return Column{}, fmt.Errorf("pileup.ParseColumn: unexpected character %q at offset %d", c, i)
		}
	}
	return col, nil
}

// parseIndelRun parses a +<n><seq> or -<n><seq> token starting at text[start].
// It returns the run sequence and the offset just past it.
func parseIndelRun(text string, start int) (seq string, next int, err error) {
	i := start + 1
	digitsStart := i
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	if i == digitsStart {
		return "", 0, fmt.Errorf("pileup.ParseColumn: %q at offset %d lacks a run length", text[start], start)
	}
	runLen, err := strconv.Atoi(text[digitsStart:i])
	if err != nil {
		return "", 0, fmt.Errorf("pileup.ParseColumn: bad run length at offset %d: %v", start, err)
	}
	if runLen == 0 {
		return "", 0, fmt.Errorf("pileup.ParseColumn: zero-length run at offset %d", start)
	}
	if i+runLen > len(text) {
		return "", 0, fmt.Errorf("pileup.ParseColumn: run of length %d at offset %d overflows the column", runLen, start)
	}
	seq = text[i : i+runLen]
	for j := 0; j < len(seq); j++ {
		if asciiToBaseTable[seq[j]] == invalidBase {
			return "", 0, fmt.Errorf("pileup.ParseColumn: non-base character %q in run at offset %d", seq[j], start)
		}
	}
	return seq, i + runLen, nil
}

// lastBaseClassIsGap reports whether the most recent CallBase/CallGap call is
// a gap.  Indel runs and read start/end markers do not break adjacency.
func lastBaseClassIsGap(calls []Call) bool {
	for i := len(calls) - 1; i >= 0; i-- {
		switch calls[i].Kind {
		case CallGap:
			return true
		case CallBase:
			return false
		}
	}
	return false
}

// FindInsertions extracts the insertion tokens of one raw pileup column.  It
// returns the inserted sequences in order of occurrence, case preserved, and
// a parallel slice marking insertions that immediately follow a deletion
// placeholder.
func FindInsertions(text string) (seqs []string, afterGap []bool, err error) {
	col, err := ParseColumn(text)
	if err != nil {
		return nil, nil, err
	}
	for _, call := range col.Calls {
		if call.Kind == CallInsertion {
			seqs = append(seqs, call.Seq)
			afterGap = append(afterGap, call.AfterGap)
		}
	}
	return seqs, afterGap, nil
}

// String reconstructs the column text.  A trailing terminator from the
// original input is not reproduced.
func (c Column) String() string {
	var sb strings.Builder
	for _, call := range c.Calls {
		switch call.Kind {
		case CallBase, CallGap:
			sb.WriteByte(call.Char)
		case CallInsertion, CallDeletionRun:
			if call.Kind == CallInsertion {
				sb.WriteByte('+')
			} else {
				sb.WriteByte('-')
			}
			sb.WriteString(strconv.Itoa(len(call.Seq)))
			sb.WriteString(call.Seq)
		case CallReadStart:
			sb.WriteByte('^')
			sb.WriteByte(call.Char)
		case CallReadEnd:
			sb.WriteByte('$')
		}
	}
	return sb.String()
}
