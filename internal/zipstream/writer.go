package zipstream

import (
	"compress/flate"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/xlsxstream/xlsxstream/bytestream"
	"github.com/xlsxstream/xlsxstream/xlsxerr"
)

// Writer streams a ZIP archive to a forward-only sink, one entry at a
// time, in emission order. No seeking is required on w: each entry is
// written with a local file header carrying zero sizes/CRC followed by a
// data descriptor once the true values are known, matching the streaming
// profile SpreadsheetML writers need.
type Writer struct {
	w       io.Writer
	offset  int64
	names   map[string]struct{}
	central []centralRecord
	closed  bool
}

type centralRecord struct {
	name       string
	method     uint16
	crc        uint32
	compSize   uint32
	uncompSize uint32
	offset     uint32
}

// NewWriter wraps w for streaming ZIP output.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, names: make(map[string]struct{})}
}

// WriteEntry streams chunks as a new deflate-compressed archive entry
// named name. Entry names must be unique within the archive.
func (zw *Writer) WriteEntry(name string, chunks bytestream.Stream) error {
	if zw.closed {
		return fmt.Errorf("zipstream: WriteEntry %q: writer already closed", name)
	}
	if _, dup := zw.names[name]; dup {
		return fmt.Errorf("zipstream: entry %q: %w", name, xlsxerr.ErrDuplicateEntry)
	}
	zw.names[name] = struct{}{}

	localOffset := zw.offset
	nameBytes := []byte(name)

	local := make([]byte, localFixSize)
	binary.LittleEndian.PutUint32(local, sigLocalFile)
	binary.LittleEndian.PutUint16(local[4:], 20) // version needed to extract
	binary.LittleEndian.PutUint16(local[6:], 1<<3) // general purpose bit 3: sizes in data descriptor
	binary.LittleEndian.PutUint16(local[8:], methodDeflate)
	binary.LittleEndian.PutUint16(local[10:], 0) // mod time
	binary.LittleEndian.PutUint16(local[12:], 0) // mod date
	// CRC/sizes left zero; recorded in the trailing data descriptor.
	binary.LittleEndian.PutUint16(local[26:], uint16(len(nameBytes)))
	if err := zw.write(local); err != nil {
		return err
	}
	if err := zw.write(nameBytes); err != nil {
		return err
	}

	crc := crc32.NewIEEE()
	var uncompSize, compSize int64

	countingDst := countingWriter{w: zw.w, n: &compSize}
	fw, err := flate.NewWriter(&countingDst, flate.DefaultCompression)
	if err != nil {
		return fmt.Errorf("zipstream: creating deflate writer for %q: %w", name, err)
	}
	for chunk := range chunks {
		uncompSize += int64(len(chunk))
		crc.Write(chunk)
		if _, err := fw.Write(chunk); err != nil {
			return fmt.Errorf("zipstream: deflating %q: %w", name, err)
		}
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("zipstream: closing deflate stream for %q: %w", name, err)
	}
	zw.offset += compSize

	desc := make([]byte, 16)
	binary.LittleEndian.PutUint32(desc, 0x08074b50)
	binary.LittleEndian.PutUint32(desc[4:], crc.Sum32())
	binary.LittleEndian.PutUint32(desc[8:], uint32(compSize))
	binary.LittleEndian.PutUint32(desc[12:], uint32(uncompSize))
	if err := zw.write(desc); err != nil {
		return err
	}

	zw.central = append(zw.central, centralRecord{
		name:       name,
		method:     methodDeflate,
		crc:        crc.Sum32(),
		compSize:   uint32(compSize),
		uncompSize: uint32(uncompSize),
		offset:     uint32(localOffset),
	})
	return nil
}

// Close emits the central directory and end-of-central-directory record.
// No further entries may be written afterward.
func (zw *Writer) Close() error {
	if zw.closed {
		return nil
	}
	zw.closed = true

	cdStart := zw.offset
	var cdSize int64
	for _, rec := range zw.central {
		nameBytes := []byte(rec.name)
		buf := make([]byte, centralFixSize)
		binary.LittleEndian.PutUint32(buf, sigCentral)
		binary.LittleEndian.PutUint16(buf[4:], 20)   // version made by
		binary.LittleEndian.PutUint16(buf[6:], 20)   // version needed
		binary.LittleEndian.PutUint16(buf[8:], 1<<3) // data descriptor flag
		binary.LittleEndian.PutUint16(buf[10:], rec.method)
		binary.LittleEndian.PutUint32(buf[16:], rec.crc)
		binary.LittleEndian.PutUint32(buf[20:], rec.compSize)
		binary.LittleEndian.PutUint32(buf[24:], rec.uncompSize)
		binary.LittleEndian.PutUint16(buf[28:], uint16(len(nameBytes)))
		binary.LittleEndian.PutUint32(buf[42:], rec.offset)
		if err := zw.write(buf); err != nil {
			return err
		}
		if err := zw.write(nameBytes); err != nil {
			return err
		}
		cdSize += int64(len(buf) + len(nameBytes))
	}

	eocd := make([]byte, eocdFixedSize)
	binary.LittleEndian.PutUint32(eocd, sigEOCD)
	binary.LittleEndian.PutUint16(eocd[8:], uint16(len(zw.central)))
	binary.LittleEndian.PutUint16(eocd[10:], uint16(len(zw.central)))
	binary.LittleEndian.PutUint32(eocd[12:], uint32(cdSize))
	binary.LittleEndian.PutUint32(eocd[16:], uint32(cdStart))
	return zw.write(eocd)
}

func (zw *Writer) write(b []byte) error {
	n, err := zw.w.Write(b)
	zw.offset += int64(n)
	if err != nil {
		return fmt.Errorf("zipstream: writing archive bytes: %w", err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n *int64
}

func (c countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	*c.n += int64(n)
	return n, err
}
