// File path: internal/framer/framer.go
package framer

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format selects how records are delimited in a data file.
type Format string

const (
	// FormatFixed cuts the input into records of exactly the layout length.
	FormatFixed Format = "fixed"
	// FormatLine treats each newline-terminated line as one record.
	FormatLine Format = "line"
	// FormatRDW reads IBM variable-length records prefixed by a 4-byte
	// record descriptor word whose first two bytes hold the length
	// including the descriptor itself.
	FormatRDW Format = "rdw"
)

const rdwLength = 4

// ErrShortRecord marks a trailing chunk shorter than the record length.
var ErrShortRecord = errors.New("framer: short record")

// ParseFormat accepts fixed, line or rdw. The empty string means fixed.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return FormatFixed, nil
	case FormatFixed, FormatLine, FormatRDW:
		return f, nil
	default:
		return "", fmt.Errorf("framer: unknown format %q", name)
	}
}

// Record is one framed record. Index counts from zero.
type Record struct {
	Index int
	Data  []byte
}

// ShortRecordError carries the bytes of an incomplete trailing record.
type ShortRecordError struct {
	Index int
	Data  []byte
	Want  int
}

func (e *ShortRecordError) Error() string {
	return fmt.Sprintf("framer: record %d has %d of %d bytes", e.Index, len(e.Data), e.Want)
}

func (e *ShortRecordError) Unwrap() error { return ErrShortRecord }

// Reader splits a byte stream into records.
type Reader struct {
	r            *bufio.Reader
	format       Format
	recordLength int
	index        int
	closer       io.Closer
}

// NewReader frames r. recordLength is required for FormatFixed and ignored
// otherwise.
func NewReader(r io.Reader, format Format, recordLength int) (*Reader, error) {
	if format == "" {
		format = FormatFixed
	}
	switch format {
	case FormatFixed:
		if recordLength <= 0 {
			return nil, fmt.Errorf("framer: fixed format needs a positive record length, got %d", recordLength)
		}
	case FormatLine, FormatRDW:
	default:
		return nil, fmt.Errorf("framer: unknown format %q", format)
	}
	return &Reader{r: bufio.NewReaderSize(r, 64*1024), format: format, recordLength: recordLength}, nil
}

// Open frames a file, decompressing .gz and .zst inputs on the fly.
func Open(path string, format Format, recordLength int) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("framer: open %s: %w", path, err)
	}
	var (
		src    io.Reader = f
		closer io.Closer = f
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("framer: gzip %s: %w", path, err)
		}
		src = zr
		closer = multiCloser{zr, f}
	case ".zst", ".zstd":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("framer: zstd %s: %w", path, err)
		}
		src = zr
		closer = multiCloser{zstdCloser{zr}, f}
	}
	rd, err := NewReader(src, format, recordLength)
	if err != nil {
		closer.Close()
		return nil, err
	}
	rd.closer = closer
	return rd, nil
}

// Close releases the underlying file when the reader came from Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Next returns the next record, or io.EOF once the input is exhausted.
func (r *Reader) Next() (Record, error) {
	var (
		data []byte
		err  error
	)
	switch r.format {
	case FormatLine:
		data, err = r.nextLine()
	case FormatRDW:
		data, err = r.nextRDW()
	default:
		data, err = r.nextFixed()
	}
	if err != nil {
		return Record{}, err
	}
	rec := Record{Index: r.index, Data: data}
	r.index++
	return rec, nil
}

func (r *Reader) nextFixed() ([]byte, error) {
	buf := make([]byte, r.recordLength)
	n, err := io.ReadFull(r.r, buf)
	switch {
	case err == nil:
		return buf, nil
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		short := &ShortRecordError{Index: r.index, Data: buf[:n], Want: r.recordLength}
		r.index++
		return nil, short
	default:
		return nil, fmt.Errorf("framer: read record %d: %w", r.index, err)
	}
}

func (r *Reader) nextLine() ([]byte, error) {
	line, err := r.r.ReadBytes('\n')
	if len(line) == 0 && err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("framer: read line %d: %w", r.index, err)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("framer: read line %d: %w", r.index, err)
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}

func (r *Reader) nextRDW() ([]byte, error) {
	var rdw [rdwLength]byte
	if _, err := io.ReadFull(r.r, rdw[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("framer: read descriptor %d: %w", r.index, err)
	}
	total := int(binary.BigEndian.Uint16(rdw[:2]))
	if total < rdwLength {
		return nil, fmt.Errorf("framer: record %d descriptor length %d is smaller than the descriptor", r.index, total)
	}
	buf := make([]byte, total-rdwLength)
	n, err := io.ReadFull(r.r, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			short := &ShortRecordError{Index: r.index, Data: buf[:n], Want: len(buf)}
			r.index++
			return nil, short
		}
		return nil, fmt.Errorf("framer: read record %d: %w", r.index, err)
	}
	return buf, nil
}

// Each calls fn for every record until the input ends or fn fails.
func (r *Reader) Each(fn func(Record) error) error {
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var errs []error
	for _, c := range m {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type zstdCloser struct{ d *zstd.Decoder }

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}
