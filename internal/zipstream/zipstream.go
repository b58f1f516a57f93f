// Package zipstream implements the narrow slice of PKZIP this codec needs:
// a random-access reader that locates entries via the end-of-central-
// directory record, and a forward-only writer that streams entries through
// DEFLATE while accumulating the central directory as it goes.
//
// Only the `stored` and `deflate` compression methods are supported, which
// is all SpreadsheetML packages ever use. Encryption and multi-disk archives
// are not implemented. The reader takes each entry's sizes and CRC-32 from
// the central directory, so entries written with trailing data descriptors
// (as this package's own Writer produces) read without looking at the
// descriptor itself.
package zipstream

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/xlsxstream/xlsxstream/bytestream"
	"github.com/xlsxstream/xlsxstream/xlsxerr"
)

const (
	methodStored  = 0
	methodDeflate = 8

	sigLocalFile = 0x04034b50
	sigCentral   = 0x02014b50
	sigEOCD      = 0x06054b50

	eocdFixedSize  = 22
	maxEOCDSearch  = 64*1024 + eocdFixedSize
	zip64Sentinel  = 0xFFFFFFFF
	centralFixSize = 46
	localFixSize   = 30
)

// Entry describes one archive member discovered during Open.
type Entry struct {
	Name             string
	Method           uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64

	offset int64
}

// Reader provides random access to the entries of a ZIP archive.
type Reader struct {
	ra      io.ReaderAt
	size    int64
	entries []Entry
	byName  map[string]int
}

// Open parses the central directory of the archive backed by ra (size
// bytes long) and returns a Reader exposing its entries in on-disk order.
func Open(ra io.ReaderAt, size int64) (*Reader, error) {
	eocdOff, cdOff, cdSize, entryCount, err := findEOCD(ra, size)
	if err != nil {
		return nil, err
	}
	_ = eocdOff

	cdBuf := make([]byte, cdSize)
	if _, err := ra.ReadAt(cdBuf, cdOff); err != nil {
		return nil, fmt.Errorf("zipstream: reading central directory: %w", xlsxerr.ErrCorruptArchive)
	}

	entries := make([]Entry, 0, entryCount)
	byName := make(map[string]int, entryCount)
	pos := 0
	for pos < len(cdBuf) {
		if pos+4 > len(cdBuf) || binary.LittleEndian.Uint32(cdBuf[pos:]) != sigCentral {
			return nil, fmt.Errorf("zipstream: central directory entry signature: %w", xlsxerr.ErrCorruptArchive)
		}
		if pos+centralFixSize > len(cdBuf) {
			return nil, fmt.Errorf("zipstream: truncated central directory record: %w", xlsxerr.ErrCorruptArchive)
		}
		method := binary.LittleEndian.Uint16(cdBuf[pos+10:])
		crc := binary.LittleEndian.Uint32(cdBuf[pos+16:])
		compSize := uint64(binary.LittleEndian.Uint32(cdBuf[pos+20:]))
		uncompSize := uint64(binary.LittleEndian.Uint32(cdBuf[pos+24:]))
		nameLen := int(binary.LittleEndian.Uint16(cdBuf[pos+28:]))
		extraLen := int(binary.LittleEndian.Uint16(cdBuf[pos+30:]))
		commentLen := int(binary.LittleEndian.Uint16(cdBuf[pos+32:]))
		localOff := int64(binary.LittleEndian.Uint32(cdBuf[pos+42:]))

		nameStart := pos + centralFixSize
		if nameStart+nameLen > len(cdBuf) {
			return nil, fmt.Errorf("zipstream: truncated central directory name: %w", xlsxerr.ErrCorruptArchive)
		}
		name := string(cdBuf[nameStart : nameStart+nameLen])

		extraStart := nameStart + nameLen
		if extraStart+extraLen > len(cdBuf) {
			return nil, fmt.Errorf("zipstream: truncated central directory extra field: %w", xlsxerr.ErrCorruptArchive)
		}
		extra := cdBuf[extraStart : extraStart+extraLen]

		if compSize == zip64Sentinel || uncompSize == zip64Sentinel || localOff == zip64Sentinel {
			z64Comp, z64Uncomp, z64Off, ok := parseZip64Extra(extra, compSize == zip64Sentinel, uncompSize == zip64Sentinel, localOff == zip64Sentinel)
			if ok {
				if compSize == zip64Sentinel {
					compSize = z64Comp
				}
				if uncompSize == zip64Sentinel {
					uncompSize = z64Uncomp
				}
				if localOff == zip64Sentinel {
					localOff = z64Off
				}
			}
		}

		entries = append(entries, Entry{
			Name:             name,
			Method:           method,
			CRC32:            crc,
			CompressedSize:   compSize,
			UncompressedSize: uncompSize,
			offset:           localOff,
		})
		byName[name] = len(entries) - 1

		pos = extraStart + extraLen + commentLen
	}

	return &Reader{ra: ra, size: size, entries: entries, byName: byName}, nil
}

// Entries returns the archive's entries in on-disk order.
func (r *Reader) Entries() []Entry {
	return r.entries
}

// ByName looks up an entry by its exact part name.
func (r *Reader) ByName(name string) (Entry, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Payload is the lazily-decoded byte-chunk stream of one entry's content.
// Because CRC-32 can only be confirmed once the stream is exhausted, Err
// is only meaningful after Chunks has been fully drained (or has stopped
// early); draining early leaves the CRC unverified and Err nil.
type Payload struct {
	name string
	crc  uint32
	src  func() io.ReadCloser
	err  error
}

// Chunks returns the stream of decoded payload bytes.
func (p *Payload) Chunks() bytestream.Stream {
	return func(yield func([]byte) bool) {
		r := p.src()
		defer r.Close()
		crc := crc32.NewIEEE()
		tee := io.TeeReader(r, crc)
		buf := make([]byte, 32*1024)
		for {
			n, err := tee.Read(buf)
			if n > 0 {
				if !yield(append([]byte(nil), buf[:n]...)) {
					return
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				p.err = fmt.Errorf("zipstream: inflating %q: %w", p.name, xlsxerr.ErrCorruptArchive)
				return
			}
		}
		if crc.Sum32() != p.crc {
			p.err = fmt.Errorf("zipstream: CRC-32 mismatch for %q: %w", p.name, xlsxerr.ErrCorruptArchive)
		}
	}
}

// Err reports any decode or CRC-verification error observed while Chunks
// was last drained. It is nil until the stream has been consumed.
func (p *Payload) Err() error {
	return p.err
}

// Open returns a lazily-decoded, CRC-verified byte-chunk stream of the
// entry's payload. It fails immediately with xlsxerr.ErrUnsupportedCompression
// for any method other than stored or deflate; CRC verification happens as
// the returned Payload's Chunks stream is drained, surfaced via Payload.Err.
func (r *Reader) Open(e Entry) (*Payload, error) {
	hdr := make([]byte, localFixSize)
	if _, err := r.ra.ReadAt(hdr, e.offset); err != nil {
		return nil, fmt.Errorf("zipstream: reading local file header for %q: %w", e.Name, xlsxerr.ErrCorruptArchive)
	}
	if binary.LittleEndian.Uint32(hdr) != sigLocalFile {
		return nil, fmt.Errorf("zipstream: local file header signature for %q: %w", e.Name, xlsxerr.ErrCorruptArchive)
	}
	nameLen := int(binary.LittleEndian.Uint16(hdr[26:]))
	extraLen := int(binary.LittleEndian.Uint16(hdr[28:]))
	dataOff := e.offset + localFixSize + int64(nameLen) + int64(extraLen)

	if e.Method != methodStored && e.Method != methodDeflate {
		return nil, fmt.Errorf("zipstream: entry %q: %w", e.Name, xlsxerr.ErrUnsupportedCompression)
	}

	compressed := io.NewSectionReader(r.ra, dataOff, int64(e.CompressedSize))
	method := e.Method
	return &Payload{
		name: e.Name,
		crc:  e.CRC32,
		src: func() io.ReadCloser {
			if method == methodDeflate {
				return flate.NewReader(compressed)
			}
			return io.NopCloser(compressed)
		},
	}, nil
}

func findEOCD(ra io.ReaderAt, size int64) (eocdOff, cdOff, cdSize int64, entryCount int, err error) {
	searchLen := int64(maxEOCDSearch)
	if searchLen > size {
		searchLen = size
	}
	buf := make([]byte, searchLen)
	if _, err := ra.ReadAt(buf, size-searchLen); err != nil && err != io.EOF {
		return 0, 0, 0, 0, fmt.Errorf("zipstream: reading tail for EOCD search: %w", xlsxerr.ErrCorruptArchive)
	}
	sig := make([]byte, 4)
	binary.LittleEndian.PutUint32(sig, sigEOCD)
	idx := bytes.LastIndex(buf, sig)
	if idx < 0 {
		return 0, 0, 0, 0, fmt.Errorf("zipstream: end-of-central-directory record not found: %w", xlsxerr.ErrCorruptArchive)
	}
	if idx+eocdFixedSize > len(buf) {
		return 0, 0, 0, 0, fmt.Errorf("zipstream: truncated end-of-central-directory record: %w", xlsxerr.ErrCorruptArchive)
	}
	rec := buf[idx:]
	entryCount = int(binary.LittleEndian.Uint16(rec[10:]))
	cdSize = int64(binary.LittleEndian.Uint32(rec[12:]))
	cdOff = int64(binary.LittleEndian.Uint32(rec[16:]))
	eocdOff = size - searchLen + int64(idx)
	return eocdOff, cdOff, cdSize, entryCount, nil
}

func parseZip64Extra(extra []byte, needComp, needUncomp, needOff bool) (comp, uncomp uint64, off int64, ok bool) {
	pos := 0
	for pos+4 <= len(extra) {
		id := binary.LittleEndian.Uint16(extra[pos:])
		size := int(binary.LittleEndian.Uint16(extra[pos+2:]))
		if pos+4+size > len(extra) {
			return 0, 0, 0, false
		}
		if id == 0x0001 {
			data := extra[pos+4 : pos+4+size]
			cursor := 0
			if needUncomp && cursor+8 <= len(data) {
				uncomp = binary.LittleEndian.Uint64(data[cursor:])
				cursor += 8
			}
			if needComp && cursor+8 <= len(data) {
				comp = binary.LittleEndian.Uint64(data[cursor:])
				cursor += 8
			}
			if needOff && cursor+8 <= len(data) {
				off = int64(binary.LittleEndian.Uint64(data[cursor:]))
				cursor += 8
			}
			return comp, uncomp, off, true
		}
		pos += 4 + size
	}
	return 0, 0, 0, false
}
