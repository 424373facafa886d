package interval

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
)

// PosType is the coordinate type used throughout this repository.  int32 is
// wide enough for per-contig coordinates and pileup row offsets.
type PosType int32

// PosTypeMax is the maximum value that can be represented by a PosType.
const PosTypeMax = math.MaxInt32

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.  This is all a BED loader needs; heavier files
// (VCF, mpileup) have their own column parsers.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// NewBEDOpts defines behavior of this package's BED-loading function(s).
type NewBEDOpts struct {
	// OneBasedInput interprets the BED interval boundaries as one-based [start,
	// end] instead of the usual zero-based [start, end).
	OneBasedInput bool
}

// searchPosTypes returns the index of x in a[], or the position where x would
// be inserted if x isn't in a (this could be len(a)).  It's exactly the same
// as sort.SearchInts(), except for PosType.
func searchPosTypes(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// BEDUnion is a collection of per-contig length-2N endpoint sequences, where N
// is the number of disjoint intervals on that contig: the (0-based) start
// position of interval #k is element [2k] and its end is element [2k+1], in
// increasing order.  Overlapping and touching input intervals are merged at
// load time.
//
// A BEDUnion is immutable once constructed, and all queries are stateless, so
// it can be shared between goroutines without synchronization.
type BEDUnion struct {
	// nameMap is a contig-keyed map with disjoint-interval-set values.
	nameMap map[string][]PosType
	// contigs preserves the input contig order.
	contigs []string
}

// Contigs returns the contig names in input order.
func (u *BEDUnion) Contigs() []string {
	return u.contigs
}

// Endpoints returns the sorted endpoint sequence for the given contig, or nil
// if the contig was not mentioned.  The result must not be mutated.
func (u *BEDUnion) Endpoints(contig string) []PosType {
	return u.nameMap[contig]
}

// Regions returns the merged [start, end) interval pairs for the given
// contig, in increasing order.
func (u *BEDUnion) Regions(contig string) [][2]PosType {
	endpoints := u.nameMap[contig]
	regions := make([][2]PosType, 0, len(endpoints)/2)
	for i := 0; i < len(endpoints); i += 2 {
		regions = append(regions, [2]PosType{endpoints[i], endpoints[i+1]})
	}
	return regions
}

// ContainsByName checks whether the (0-based) interval [pos, pos+1) is
// contained within the BEDUnion, where the contig is specified by name.
func (u *BEDUnion) ContainsByName(contig string, pos PosType) bool {
	endpoints := u.nameMap[contig]
	if endpoints == nil {
		return false
	}
	return searchPosTypes(endpoints, pos+1)&1 == 1
}

// Scanner returns a UnionScanner over the given contig's intervals.
func (u *BEDUnion) Scanner(contig string) UnionScanner {
	return NewUnionScanner(u.nameMap[contig])
}

func scanBEDUnion(scanner *bufio.Scanner, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	bedUnion.nameMap = make(map[string][]PosType)

	var startSubtract int
	if opts.OneBasedInput {
		startSubtract++
	}

	var tokens [3][]byte

	lineIdx := 0
	prevChr := ""
	totBases := 0
	var prevStart, prevEnd PosType
	var chrIntervals []PosType
	for scanner.Scan() {
		lineIdx++
		// scanner.Text() allocates and scanner.Bytes() does not; tokens only
		// live until the next Scan call, which is all the strconv calls below
		// need.
		curLine := scanner.Bytes()
		nToken := getTokens(tokens[:], curLine)
		if nToken != 3 {
			if nToken == 0 {
				continue
			}
			err = fmt.Errorf("interval.scanBEDUnion: line %d has fewer tokens than expected", lineIdx)
			return
		}

		curChr := tokens[0]
		var parsedStart int
		if parsedStart, err = strconv.Atoi(gunsafe.BytesToString(tokens[1])); err != nil {
			return
		}
		parsedStart -= startSubtract
		if parsedStart < 0 {
			err = fmt.Errorf("interval.scanBEDUnion: negative start coordinate %v on line %d", tokens[1], lineIdx)
			return
		}
		start := PosType(parsedStart)

		var parsedEnd int
		if parsedEnd, err = strconv.Atoi(gunsafe.BytesToString(tokens[2])); err != nil {
			return
		}
		if (parsedEnd < parsedStart) || (parsedEnd >= PosTypeMax) {
			err = fmt.Errorf("interval.scanBEDUnion: invalid coordinate pair on line %d", lineIdx)
			return
		}
		end := PosType(parsedEnd)
		if prevChr != gunsafe.BytesToString(curChr) {
			if prevChr != "" {
				if prevEnd != -1 {
					chrIntervals = append(chrIntervals, prevStart, prevEnd)
				}
				bedUnion.nameMap[prevChr] = chrIntervals
			}
			// curChr refers to bytes on curLine that will be overwritten soon; a
			// full heap copy is needed since this persists as a map key.
			prevChr = string(curChr)
			if _, found := bedUnion.nameMap[prevChr]; found {
				err = fmt.Errorf("interval.scanBEDUnion: unsorted input (split contig %v)", prevChr)
				return
			}
			bedUnion.contigs = append(bedUnion.contigs, prevChr)
			chrIntervals = []PosType{}
			if end == start {
				// Distinguish between 'mentioned' contigs without any overlapping
				// bases and unmentioned contigs.
				prevStart = -1
				prevEnd = -1
			} else {
				prevStart = start
				prevEnd = end
			}
			totBases += int(end - start)
			continue
		}
		if end == start {
			continue
		}
		if start > prevEnd {
			// New interval doesn't overlap the previous one, so the previous one
			// can be saved.
			if prevEnd != -1 {
				chrIntervals = append(chrIntervals, prevStart, prevEnd)
			}
			prevStart = start
			prevEnd = end
			totBases += int(end - start)
		} else {
			if start < prevStart {
				err = fmt.Errorf("interval.scanBEDUnion: unsorted input")
				return
			}
			// Intervals overlap, merge them.
			if end > prevEnd {
				totBases += int(end - prevEnd)
				prevEnd = end
			}
		}
	}
	if err = scanner.Err(); err != nil {
		return
	}
	log.Printf("BED loaded, %d base(s) covered.\n", totBases)
	if prevChr != "" {
		if prevEnd != -1 {
			chrIntervals = append(chrIntervals, prevStart, prevEnd)
		}
		bedUnion.nameMap[prevChr] = chrIntervals
	}
	return
}

// NewBEDUnion loads just the intervals from a sorted (by first coordinate)
// interval-BED, merging touching/overlapping intervals and eliminating empty
// ones in the process.  A BEDUnion is returned.
func NewBEDUnion(reader io.Reader, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	// Scanner does not handle very long lines unless an adequate buffer size is
	// specified in advance.  Shouldn't matter for BED files.
	scanner := bufio.NewScanner(reader)
	return scanBEDUnion(scanner, opts)
}

// NewBEDUnionFromPath is a wrapper for NewBEDUnion that takes a path instead
// of an io.Reader.
func NewBEDUnionFromPath(path string, opts NewBEDOpts) (bedUnion BEDUnion, err error) {
	ctx := vcontext.Background()
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			return
		}
	}
	return NewBEDUnion(reader, opts)
}

// UnionScanner supports iteration over an interval-union.
type UnionScanner struct {
	endpoints   []PosType
	pos         PosType
	endpointIdx int
}

// NewUnionScanner returns a UnionScanner initialized to the first interval of
// the given sorted endpoint sequence.
func NewUnionScanner(endpoints []PosType) UnionScanner {
	startPos := PosType(PosTypeMax)
	startEndpointIdx := 0
	if len(endpoints) >= 1 {
		startPos = endpoints[0]
		startEndpointIdx = 1
	}
	return UnionScanner{
		endpoints:   endpoints,
		pos:         startPos,
		endpointIdx: startEndpointIdx,
	}
}

// Pos returns the next position to be iterated over, or PosTypeMax if there
// aren't any.
func (us *UnionScanner) Pos() PosType {
	return us.pos
}

// Scan is written so that the following loop iterates over all
// within-interval positions up to (and not including) limit:
//   for us.Scan(&start, &end, limit) {
//     for pos := start; pos < end; pos++ {
//       // ...do stuff with pos...
//     }
//   }
// A subsequent loop with a higher limit picks up where the previous one left
// off.
func (us *UnionScanner) Scan(start *PosType, end *PosType, limit PosType) bool {
	if us.pos >= limit {
		return false
	}
	*start = us.pos
	intervalEnd := us.endpoints[us.endpointIdx]
	if intervalEnd > limit {
		us.pos = limit
		*end = limit
		return true
	}
	*end = intervalEnd
	us.endpointIdx++
	if us.endpointIdx >= len(us.endpoints) {
		us.pos = PosTypeMax
	} else {
		us.pos = us.endpoints[us.endpointIdx]
		us.endpointIdx++
	}
	return true
}
