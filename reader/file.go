// Package reader opens SDB files: it parses the ASCII header and metadata
// blocks, exposes the candle index, and streams decoded records to a
// visitor callback.
package reader

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/saleyn/sdb/codec"
	"github.com/saleyn/sdb/logger"
	"github.com/saleyn/sdb/models"
)

// Reader is a read-mode SDB file. It owns its handle exclusively; methods
// must be called from one goroutine.
type Reader struct {
	f    *os.File
	name string

	hdr     *models.Header
	streams *models.StreamsMeta
	candles *models.CandlesMeta

	log *logger.Entry
}

// Open reads and validates the header, streams metadata, candle index and
// begin-data marker of the file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := &Reader{f: f, name: path, log: logger.GetLogger().WithComponent("sdb_reader")}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() < models.MinFileSize {
		f.Close()
		return nil, fmt.Errorf("file %s has invalid size %d: %w",
			path, fi.Size(), models.ErrInvalidHeader)
	}

	br := bufio.NewReader(f)
	off := 0

	r.hdr, off, err = codec.ReadHeader(br)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s at offset %d: %w", path, off, err)
	}

	var n int
	r.streams, n, err = codec.ReadStreamsMeta(br)
	off += n
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s at offset %d: %w", path, off, err)
	}

	r.candles, n, err = codec.ReadCandlesMeta(br)
	off += n
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s at offset %d: %w", path, off, err)
	}

	if r.streams.DataOffset != uint32(off) {
		f.Close()
		return nil, fmt.Errorf("%s: data offset %d does not match metadata end %d: %w",
			path, r.streams.DataOffset, off, models.ErrCorruptMetadata)
	}
	if n, err = codec.ReadBeginData(br); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s at offset %d: %w", path, off+n, err)
	}

	r.log.WithFields(logger.Fields{
		"file":    path,
		"symbol":  r.hdr.Symbol,
		"streams": len(r.streams.Streams),
	}).Debug("sdb file opened")
	return r, nil
}

// Info returns the file header.
func (r *Reader) Info() *models.Header { return r.hdr }

// Filename returns the path the file was opened from.
func (r *Reader) Filename() string { return r.name }

// Streams lists the stream types declared in the file.
func (r *Reader) Streams() []models.StreamType { return r.streams.Streams }

// Candles returns the candle index read from the metadata section.
func (r *Reader) Candles() *models.CandlesMeta { return r.candles }

// DataOffset returns the file position of the begin-data marker.
func (r *Reader) DataOffset() uint32 { return r.streams.DataOffset }

// countReader tracks the absolute file offset of the decode cursor.
type countReader struct {
	r   *bufio.Reader
	off int64
}

func (c *countReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.off += int64(n)
	return n, err
}

func (c *countReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.off++
	}
	return b, err
}

// Read seeks to the data section, verifies the begin-data marker and
// invokes visit once per decoded record in file order. Seconds markers are
// delivered as well; they carry the current-second baseline. A false return
// from visit stops the scan.
func (r *Reader) Read(visit func(models.Sample) bool) error {
	if _, err := r.f.Seek(int64(r.streams.DataOffset), io.SeekStart); err != nil {
		return fmt.Errorf("seek %s: %w", r.name, err)
	}
	cr := &countReader{r: bufio.NewReader(r.f), off: int64(r.streams.DataOffset)}
	if _, err := codec.ReadBeginData(cr); err != nil {
		return fmt.Errorf("%s at offset %d: %w", r.name, cr.off, err)
	}

	var (
		lastQuotePx models.PriceT
		lastTradePx models.PriceT
		cumUsec     int
	)

	for {
		hb, err := cr.ReadByte()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s at offset %d: %w", r.name, cr.off, err)
		}
		recOff := cr.off - 1

		st, delta := codec.SplitStreamHeader(hb)
		var s models.Sample
		switch st {
		case models.StreamSeconds:
			sec, derr := codec.DecodeSeconds(cr)
			if derr != nil {
				err = derr
				break
			}
			// New baseline: microsecond accumulation and price running
			// sums restart here.
			cumUsec = 0
			lastQuotePx, lastTradePx = 0, 0
			s = sec

		case models.StreamQuotes:
			q, derr := codec.DecodeQuote(cr, delta, r.hdr.Depth, &lastQuotePx)
			if derr != nil {
				err = derr
				break
			}
			if delta {
				cumUsec += q.Time
			} else {
				cumUsec = q.Time
			}
			q.Time = cumUsec
			s = q

		case models.StreamTrade:
			t, derr := codec.DecodeTrade(cr, delta, &lastTradePx)
			if derr != nil {
				err = derr
				break
			}
			if delta {
				cumUsec += t.Time
			} else {
				cumUsec = t.Time
			}
			t.Time = cumUsec
			s = t

		default:
			err = fmt.Errorf("stream type %d: %w", st, models.ErrCorruptMetadata)
		}
		if err != nil {
			return fmt.Errorf("%s at offset %d: %w", r.name, recOff, err)
		}
		if !visit(s) {
			return nil
		}
	}
}

// Close releases the file handle.
func (r *Reader) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}
