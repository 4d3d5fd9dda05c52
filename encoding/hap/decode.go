package hap

import (
	"bytes"
	"fmt"
	"strconv"

	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/pkg/errors"
)

const (
	hapColumns         = 6
	correlationColumns = 4

	// MaxColumns is the number of tokens a caller needs to buffer for
	// Tokenize before calling Decode.
	MaxColumns = hapColumns
)

// ErrComment is returned by DecodeLine for header/comment lines.
var ErrComment = errors.New("comment line")

// DecodeError describes a single malformed record.  Callers usually log it
// and move on to the next line.
type DecodeError struct {
	// Column is the 0-based column of the offending field, or -1 if the line
	// as a whole was bad (e.g. too few columns).
	Column int
	// Name is the column's name in the file layout.
	Name string
	// Field is the offending token.
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Column < 0 {
		return fmt.Sprintf("hap: %v", e.Err)
	}
	return fmt.Sprintf("hap: column %d (%s) %q: %v", e.Column+1, e.Name, e.Field, e.Err)
}

// Unwrap returns the underlying parse error.
func (e *DecodeError) Unwrap() error { return e.Err }

var columnNames = [...]string{"chr", "start", "end", "calls", "count", "strand"}

func fieldError(col int, field []byte, err error) *DecodeError {
	return &DecodeError{Column: col, Name: columnNames[col], Field: string(field), Err: err}
}

// Tokenize stores up to len(dst) tokens of line in dst and returns the
// number stored.  Any run of bytes <= ' ' is a delimiter, so tabs, spaces and
// trailing '\r' are all handled.  The tokens alias line.
func Tokenize(dst [][]byte, line []byte) int {
	posEnd := 0
	lineLen := len(line)
	for tokenIdx := range dst {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if line[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if line[posEnd] <= ' ' {
				break
			}
		}
		dst[tokenIdx] = line[pos:posEnd]
	}
	return len(dst)
}

func parseInterval(fields [][]byte) (iv Interval, err error) {
	if len(fields[0]) == 0 {
		return iv, fieldError(0, fields[0], errors.New("empty chromosome"))
	}
	iv.Chr = string(fields[0])
	if iv.Start, err = strconv.Atoi(gunsafe.BytesToString(fields[1])); err != nil {
		return iv, fieldError(1, fields[1], err)
	}
	if iv.End, err = strconv.Atoi(gunsafe.BytesToString(fields[2])); err != nil {
		return iv, fieldError(2, fields[2], err)
	}
	if iv.Start < 0 {
		return iv, fieldError(1, fields[1], errors.New("negative start"))
	}
	if iv.End <= iv.Start {
		return iv, fieldError(2, fields[2], errors.Errorf("end must be greater than start %d", iv.Start))
	}
	return iv, nil
}

// ParseStrand maps a strand token to a Strand.  The token may carry extra
// characters; the first of '*', '+' or '-' found wins in that priority.
func ParseStrand(tok []byte) (Strand, error) {
	switch {
	case bytes.IndexByte(tok, '*') >= 0:
		return None, nil
	case bytes.IndexByte(tok, '+') >= 0:
		return Forward, nil
	case bytes.IndexByte(tok, '-') >= 0:
		return Reverse, nil
	}
	return None, errors.New("unknown strand symbol")
}

// DecodeHap decodes the columns of a haplotype line.
func DecodeHap(fields [][]byte) (*Hap, error) {
	if len(fields) < hapColumns {
		return nil, &DecodeError{Column: -1, Err: fmt.Errorf("haplotype line has %d columns, want %d", len(fields), hapColumns)}
	}
	iv, err := parseInterval(fields)
	if err != nil {
		return nil, err
	}
	h := &Hap{Interval: iv, States: make([]bool, len(fields[3]))}
	for i, c := range fields[3] {
		h.States[i] = c == '1'
	}
	if h.Count, err = strconv.Atoi(gunsafe.BytesToString(fields[4])); err != nil {
		return nil, fieldError(4, fields[4], err)
	}
	if h.Strand, err = ParseStrand(fields[5]); err != nil {
		return nil, fieldError(5, fields[5], err)
	}
	return h, nil
}

// DecodeCorrelation decodes the columns of a correlation line.
func DecodeCorrelation(fields [][]byte) (*Correlation, error) {
	if len(fields) < correlationColumns {
		return nil, &DecodeError{Column: -1, Err: fmt.Errorf("correlation line has %d columns, want %d", len(fields), correlationColumns)}
	}
	iv, err := parseInterval(fields)
	if err != nil {
		return nil, err
	}
	c := &Correlation{Interval: iv}
	if c.Value, err = strconv.ParseFloat(gunsafe.BytesToString(fields[3]), 64); err != nil {
		e := fieldError(3, fields[3], err)
		e.Name = "correlation"
		return nil, e
	}
	return c, nil
}

// Decode decodes already-tokenized fields as the given kind.
func Decode(kind Kind, fields [][]byte) (Record, error) {
	if kind == CorrelationKind {
		c, err := DecodeCorrelation(fields)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	h, err := DecodeHap(fields)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Decoder tokenizes and decodes lines of one kind, reusing its token buffer.
// Not thread safe.
type Decoder struct {
	Kind   Kind
	tokens [MaxColumns][]byte
}

// DecodeLine decodes one text line.  Blank lines and lines starting with '#'
// return ErrComment.
func (d *Decoder) DecodeLine(line []byte) (Record, error) {
	n := Tokenize(d.tokens[:], line)
	if n == 0 || d.tokens[0][0] == '#' {
		return nil, ErrComment
	}
	return Decode(d.Kind, d.tokens[:n])
}
