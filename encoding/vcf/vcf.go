// Package vcf contains a streaming parser for Variant Call Format files.
// See https://samtools.github.io/hts-specs/VCFv4.2.pdf.  Briefly, a VCF file
// starts with "##" meta lines, followed by one "#CHROM ..." column header
// line naming the per-sample columns, followed by tab-separated data lines.
// For example:
//
// ##fileformat=VCFv4.2
// #CHROM POS ID REF ALT QUAL FILTER INFO FORMAT sample1
// chr1   14  .  A   G   50   PASS   DP=35 GT:GQ  0/1:42
//
// The parser keeps sample columns as raw strings; genotype helpers decode
// the GT subfield on demand.
package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// Missing is the VCF missing-value marker.
	Missing = "."

	bufferInitSize = 1024 * 1024 * 4 // 4 MB

	numFixedCols = 8 // CHROM POS ID REF ALT QUAL FILTER INFO
)

// ParseError describes one malformed header or data line.
type ParseError struct {
	// Path of the file, when known.
	Path string
	// Line is the 1-based line number within the file.
	Line int
	Msg  string
}

// Error implements error.
func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: line %d: %s", e.Path, e.Line, e.Msg)
}

// InfoField is one entry of a record's INFO column, in file order.  HasValue
// distinguishes flag entries (bare key) from key=value entries; list values
// keep their comma-separated text form.
type InfoField struct {
	Key      string
	Value    string
	HasValue bool
}

// Header holds the meta lines and column line of a VCF file.
type Header struct {
	// Meta holds the raw "##" lines, in order, without the trailing newline.
	Meta []string
	// SampleNames holds the sample column names from the "#CHROM" line, in
	// column order.
	SampleNames []string
}

// Record is one parsed VCF data line.
type Record struct {
	Chrom string
	// Pos is the 1-based reference position.
	Pos int64
	ID  string
	Ref string
	// Alts holds the comma-separated alternate alleles; nil when the column
	// is ".".
	Alts []string
	// Qual is meaningful only when HasQual is set; the column is "."
	// otherwise.
	Qual    float64
	HasQual bool
	Filter  string
	Info    []InfoField
	// Format is the raw FORMAT column; empty when the file carries no
	// genotype columns.
	Format string
	// Samples holds the raw per-sample columns, parallel to
	// Header.SampleNames.
	Samples []string
}

// InfoString renders the INFO fields back to their one-line ";"-joined text
// form: flags as bare keys, everything else as key=value.
func (r *Record) InfoString() string {
	if len(r.Info) == 0 {
		return Missing
	}
	var sb strings.Builder
	for i, f := range r.Info {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(f.Key)
		if f.HasValue {
			sb.WriteByte('=')
			sb.WriteString(f.Value)
		}
	}
	return sb.String()
}

// IsSNP reports whether the record is a single-base substitution: a
// one-base REF and at least one ALT, all ALTs single bases.
func (r *Record) IsSNP() bool {
	if len(r.Ref) != 1 || len(r.Alts) == 0 {
		return false
	}
	for _, alt := range r.Alts {
		if len(alt) != 1 || !strings.ContainsAny(alt, "ACGTNacgtn") {
			return false
		}
	}
	return true
}

// Genotype classifications used by the counting helpers.
const (
	gtHomRef = iota
	gtHet
	gtHomAlt
)

// GT returns the genotype allele indexes of the given sample column,
// splitting on both '/' and '|'.  ok is false when the record carries no GT
// subfield, the sample is out of range, or the subfield is malformed.
// Missing alleles ('.') are returned as -1.
func (r *Record) GT(sample int) (alleles []int, ok bool) {
	if sample < 0 || sample >= len(r.Samples) {
		return nil, false
	}
	gtIdx := -1
	for i, key := range strings.Split(r.Format, ":") {
		if key == "GT" {
			gtIdx = i
			break
		}
	}
	if gtIdx < 0 {
		return nil, false
	}
	subs := strings.Split(r.Samples[sample], ":")
	// Trailing subfields may be dropped from a sample column.
	if gtIdx >= len(subs) {
		return nil, false
	}
	gt := subs[gtIdx]
	if gt == "" {
		return nil, false
	}
	for _, a := range strings.FieldsFunc(gt, func(c rune) bool { return c == '/' || c == '|' }) {
		if a == Missing {
			alleles = append(alleles, -1)
			continue
		}
		v, err := strconv.Atoi(a)
		if err != nil || v < 0 {
			return nil, false
		}
		alleles = append(alleles, v)
	}
	if len(alleles) == 0 {
		return nil, false
	}
	return alleles, true
}

// gtType classifies one sample's genotype.  called is false when the sample
// has no GT or any allele is missing.
func (r *Record) gtType(sample int) (gt int, called bool) {
	alleles, ok := r.GT(sample)
	if !ok {
		return 0, false
	}
	for _, a := range alleles {
		if a < 0 {
			return 0, false
		}
	}
	for _, a := range alleles[1:] {
		if a != alleles[0] {
			return gtHet, true
		}
	}
	if alleles[0] == 0 {
		return gtHomRef, true
	}
	return gtHomAlt, true
}

// NumCalled returns the number of samples with a fully called genotype.
func (r *Record) NumCalled() int {
	n := 0
	for i := range r.Samples {
		if _, called := r.gtType(i); called {
			n++
		}
	}
	return n
}

// NumHet returns the number of samples with a heterozygous genotype.
func (r *Record) NumHet() int {
	n := 0
	for i := range r.Samples {
		if gt, called := r.gtType(i); called && gt == gtHet {
			n++
		}
	}
	return n
}

// NumHomAlt returns the number of samples with a homozygous non-reference
// genotype.
func (r *Record) NumHomAlt() int {
	n := 0
	for i := range r.Samples {
		if gt, called := r.gtType(i); called && gt == gtHomAlt {
			n++
		}
	}
	return n
}

// Reader parses one VCF stream.  It is not safe for concurrent use.
type Reader struct {
	scanner *bufio.Scanner
	header  Header
	path    string
	line    int
}

// NewReader parses the header of r and returns a Reader positioned at the
// first data line.
func NewReader(r io.Reader) (*Reader, error) {
	return newReader(r, "")
}

func newReader(r io.Reader, path string) (*Reader, error) {
	rd := &Reader{scanner: bufio.NewScanner(r), path: path}
	rd.scanner.Buffer(nil, bufferInitSize)
	for rd.scanner.Scan() {
		rd.line++
		line := rd.scanner.Text()
		if strings.HasPrefix(line, "##") {
			rd.header.Meta = append(rd.header.Meta, line)
			continue
		}
		if !strings.HasPrefix(line, "#") {
			return nil, rd.parseError("expected a #CHROM header line before data lines")
		}
		fields := strings.Split(line, "\t")
		if len(fields) < numFixedCols || fields[0] != "#CHROM" {
			return nil, rd.parseError("malformed #CHROM header line")
		}
		if len(fields) > numFixedCols+1 {
			rd.header.SampleNames = fields[numFixedCols+1:]
		}
		return rd, nil
	}
	if err := rd.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, rd.parseError("missing #CHROM header line")
}

// Header returns the parsed file header.
func (r *Reader) Header() *Header { return &r.header }

// SampleNames returns the sample column names, in order.
func (r *Reader) SampleNames() []string { return r.header.SampleNames }

func (r *Reader) parseError(format string, args ...interface{}) error {
	return &ParseError{Path: r.path, Line: r.line, Msg: fmt.Sprintf(format, args...)}
}

// Read returns the next data line.  It returns io.EOF after the last one.
func (r *Reader) Read() (*Record, error) {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Text()
		if line == "" {
			continue
		}
		return r.parseRecord(line)
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *Reader) parseRecord(line string) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < numFixedCols {
		return nil, r.parseError("expected at least %d columns, found %d", numFixedCols, len(fields))
	}
	if want := numFixedCols + 1 + len(r.header.SampleNames); len(r.header.SampleNames) > 0 && len(fields) != want {
		return nil, r.parseError("expected %d columns for %d sample(s), found %d", want, len(r.header.SampleNames), len(fields))
	}
	rec := &Record{
		Chrom:  fields[0],
		ID:     fields[2],
		Ref:    fields[3],
		Filter: fields[6],
	}
	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || pos <= 0 {
		return nil, r.parseError("invalid POS column %q", fields[1])
	}
	rec.Pos = pos
	if fields[4] != Missing {
		rec.Alts = strings.Split(fields[4], ",")
	}
	if fields[5] != Missing {
		qual, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return nil, r.parseError("invalid QUAL column %q", fields[5])
		}
		rec.Qual = qual
		rec.HasQual = true
	}
	if fields[7] != Missing {
		for _, entry := range strings.Split(fields[7], ";") {
			if entry == "" {
				return nil, r.parseError("empty INFO entry")
			}
			if eq := strings.IndexByte(entry, '='); eq >= 0 {
				rec.Info = append(rec.Info, InfoField{Key: entry[:eq], Value: entry[eq+1:], HasValue: true})
			} else {
				rec.Info = append(rec.Info, InfoField{Key: entry})
			}
		}
	}
	if len(fields) > numFixedCols {
		rec.Format = fields[numFixedCols]
		rec.Samples = fields[numFixedCols+1:]
	}
	return rec, nil
}
