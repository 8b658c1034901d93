package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	magic         = "HVRS"
	formatVersion = 1

	// maxFieldLen bounds a single key or value so corrupt headers fail fast.
	maxFieldLen = 1 << 30
)

// Compression selects the block codec applied to the record stream.
type Compression byte

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

// ParseCompression maps a codec name to its Compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression: %q", name)
	}
}

// ErrBadFormat is returned when a stream is not an hvision record file.
var ErrBadFormat = errors.New("not an hvision record file")

// Writer appends records to an underlying stream.
type Writer struct {
	bw     *bufio.Writer
	codec  io.WriteCloser
	out    *bufio.Writer
	lenBuf [binary.MaxVarintLen64]byte
	count  int
}

// NewWriter writes the file header and returns a Writer. Close must be called
// to flush the codec; it does not close w.
func NewWriter(w io.Writer, c Compression) (*Writer, error) {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(magic); err != nil {
		return nil, err
	}
	if err := bw.WriteByte(formatVersion); err != nil {
		return nil, err
	}
	if err := bw.WriteByte(byte(c)); err != nil {
		return nil, err
	}

	wr := &Writer{bw: bw}
	switch c {
	case CompressionNone:
		wr.out = bw
	case CompressionZstd:
		enc, err := zstd.NewWriter(bw)
		if err != nil {
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		wr.codec = enc
		wr.out = bufio.NewWriter(enc)
	case CompressionLZ4:
		zw := lz4.NewWriter(bw)
		wr.codec = zw
		wr.out = bufio.NewWriter(zw)
	default:
		return nil, fmt.Errorf("unsupported compression %v", c)
	}

	return wr, nil
}

// Write appends one record.
func (w *Writer) Write(rec Record) error {
	if err := w.writeField([]byte(rec.Key)); err != nil {
		return err
	}
	if err := w.writeField(rec.Value); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int {
	return w.count
}

func (w *Writer) writeField(b []byte) error {
	n := binary.PutUvarint(w.lenBuf[:], uint64(len(b)))
	if _, err := w.out.Write(w.lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.out.Write(b)
	return err
}

// Close flushes buffered records and the codec.
func (w *Writer) Close() error {
	if w.codec != nil {
		if err := w.out.Flush(); err != nil {
			return err
		}
		if err := w.codec.Close(); err != nil {
			return err
		}
	}
	return w.bw.Flush()
}

// Reader iterates the records of a stream.
type Reader struct {
	in          *bufio.Reader
	closeCodec  func()
	compression Compression
}

// NewReader validates the header and returns a Reader.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)

	header := make([]byte, len(magic)+2)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadFormat, err)
	}
	if string(header[:len(magic)]) != magic {
		return nil, ErrBadFormat
	}
	if header[len(magic)] != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, header[len(magic)])
	}

	rd := &Reader{compression: Compression(header[len(magic)+1])}
	switch rd.compression {
	case CompressionNone:
		rd.in = br
	case CompressionZstd:
		dec, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("creating zstd decoder: %w", err)
		}
		rd.in = bufio.NewReader(dec)
		rd.closeCodec = dec.Close
	case CompressionLZ4:
		rd.in = bufio.NewReader(lz4.NewReader(br))
	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrBadFormat, byte(rd.compression))
	}

	return rd, nil
}

// Compression returns the codec the stream was written with.
func (r *Reader) Compression() Compression {
	return r.compression
}

// Next returns the next record or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	key, err := r.readField()
	if err != nil {
		return Record{}, err
	}

	value, err := r.readField()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Record{}, err
	}

	return Record{Key: string(key), Value: value}, nil
}

func (r *Reader) readField() ([]byte, error) {
	n, err := binary.ReadUvarint(r.in)
	if err != nil {
		return nil, err
	}
	if n > maxFieldLen {
		return nil, fmt.Errorf("%w: field length %d too large", ErrBadFormat, n)
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r.in, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return buf, nil
}

// Close releases codec resources. It does not close the underlying reader.
func (r *Reader) Close() error {
	if r.closeCodec != nil {
		r.closeCodec()
	}
	return nil
}
