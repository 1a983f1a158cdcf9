package codec

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/saleyn/sdb/models"
)

// Metadata block tags.
const (
	TagStreamsMeta  = 0x01
	TagStreamMeta   = 0x02
	TagCandlesMeta  = 0x03
	TagCandleHeader = 0x04
)

// streamsMeta layout after the tag and compression bytes:
// u32le data offset, u8 stream count, then {TagStreamMeta, type} per stream.

// WriteStreamsMeta emits the streams metadata block, reserving a zeroed
// 32-bit data-offset slot. The slot's file position is remembered in
// m.DataOffsetPos for back-patching.
func WriteStreamsMeta(f WriteSeeker, m *models.StreamsMeta) error {
	if _, err := f.Write([]byte{TagStreamsMeta, byte(m.Compression)}); err != nil {
		return err
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	m.DataOffsetPos = pos

	buf := []byte{0, 0, 0, 0, byte(len(m.Streams))}
	for _, st := range m.Streams {
		if !st.Valid() {
			return fmt.Errorf("stream type %d: %w", st, models.ErrCorruptMetadata)
		}
		buf = append(buf, TagStreamMeta, byte(st))
	}
	_, err = f.Write(buf)
	return err
}

// PatchDataOffset back-patches the begin-data offset slot reserved by
// WriteStreamsMeta without disturbing the append cursor.
func PatchDataOffset(f WriteSeeker, m *models.StreamsMeta, off uint32) error {
	err := Bookmark(f, m.DataOffsetPos, func() error {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], off)
		_, err := f.Write(b[:])
		return err
	})
	if err == nil {
		m.DataOffset = off
	}
	return err
}

// ReadStreamsMeta parses the streams metadata block, returning the block and
// the number of bytes consumed.
func ReadStreamsMeta(r io.Reader) (*models.StreamsMeta, int, error) {
	var b [7]byte
	n, err := io.ReadFull(r, b[:])
	if err != nil {
		return nil, n, fmt.Errorf("streams meta: %w", err)
	}
	if b[0] != TagStreamsMeta {
		return nil, n, fmt.Errorf("streams meta tag 0x%02x: %w", b[0], models.ErrInvalidMarker)
	}
	m := &models.StreamsMeta{Compression: models.CompressT(b[1])}
	if m.Compression > models.CompressGZip {
		return nil, n, fmt.Errorf("compression %d: %w", b[1], models.ErrCorruptMetadata)
	}
	m.DataOffset = binary.LittleEndian.Uint32(b[2:6])
	count := int(b[6])

	sb := make([]byte, count*2)
	nn, err := io.ReadFull(r, sb)
	n += nn
	if err != nil {
		return nil, n, fmt.Errorf("stream meta: %w", err)
	}
	for i := 0; i < count; i++ {
		if sb[2*i] != TagStreamMeta {
			return nil, n, fmt.Errorf("stream meta tag 0x%02x: %w", sb[2*i], models.ErrInvalidMarker)
		}
		st := models.StreamType(sb[2*i+1])
		if !st.Valid() {
			return nil, n, fmt.Errorf("stream type %d: %w", sb[2*i+1], models.ErrCorruptMetadata)
		}
		m.Streams = append(m.Streams, st)
	}
	return m, n, nil
}

// AppendCandle appends the 32-byte on-disk form of c to dst.
func AppendCandle(dst []byte, c *models.Candle) []byte {
	var b [models.CandleSize]byte
	binary.LittleEndian.PutUint32(b[0:], uint32(c.Open))
	binary.LittleEndian.PutUint32(b[4:], uint32(c.High))
	binary.LittleEndian.PutUint32(b[8:], uint32(c.Low))
	binary.LittleEndian.PutUint32(b[12:], uint32(c.Close))
	binary.LittleEndian.PutUint32(b[16:], c.BuyVol)
	binary.LittleEndian.PutUint32(b[20:], c.SellVol)
	binary.LittleEndian.PutUint64(b[24:], c.DataOffset)
	return append(dst, b[:]...)
}

func decodeCandle(b []byte) models.Candle {
	return models.Candle{
		Open:       models.PriceT(binary.LittleEndian.Uint32(b[0:])),
		High:       models.PriceT(binary.LittleEndian.Uint32(b[4:])),
		Low:        models.PriceT(binary.LittleEndian.Uint32(b[8:])),
		Close:      models.PriceT(binary.LittleEndian.Uint32(b[12:])),
		BuyVol:     binary.LittleEndian.Uint32(b[16:]),
		SellVol:    binary.LittleEndian.Uint32(b[20:]),
		DataOffset: binary.LittleEndian.Uint64(b[24:]),
	}
}

// WriteCandlesMeta emits the candle index: the per-resolution headers with
// zeroed candle-data offsets, then each resolution's candle array. As each
// array begins, its absolute position is back-patched into the matching
// header slot and recorded in hdr.DataOffset.
func WriteCandlesMeta(f WriteSeeker, m *models.CandlesMeta) error {
	buf := make([]byte, 0, 64)
	buf = append(buf, TagCandlesMeta, 0)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(m.Headers)))
	if _, err := f.Write(buf); err != nil {
		return err
	}

	// Header records, remembering the position of each offset slot.
	slots := make([]int64, len(m.Headers))
	for i := range m.Headers {
		hdr := &m.Headers[i]
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		slots[i] = pos + 12 // tag+filler+res+start+count precede the slot

		buf = buf[:0]
		buf = append(buf, TagCandleHeader, 0)
		buf = binary.LittleEndian.AppendUint16(buf, hdr.Resolution)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(hdr.StartTime))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(hdr.Candles)))
		buf = binary.LittleEndian.AppendUint32(buf, 0)
		if _, err := f.Write(buf); err != nil {
			return err
		}
	}

	// Candle arrays, one block per resolution.
	for i := range m.Headers {
		hdr := &m.Headers[i]
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return err
		}
		hdr.DataOffset = uint32(pos)

		err = Bookmark(f, slots[i], func() error {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], hdr.DataOffset)
			_, err := f.Write(b[:])
			return err
		})
		if err != nil {
			return err
		}

		buf = buf[:0]
		for j := range hdr.Candles {
			buf = AppendCandle(buf, &hdr.Candles[j])
		}
		if _, err := f.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// CommitCandles re-serializes every candle into its reserved array slot,
// restoring the append cursor afterwards.
func CommitCandles(f WriteSeeker, m *models.CandlesMeta) error {
	for i := range m.Headers {
		hdr := &m.Headers[i]
		err := Bookmark(f, int64(hdr.DataOffset), func() error {
			buf := make([]byte, 0, len(hdr.Candles)*models.CandleSize)
			for j := range hdr.Candles {
				buf = AppendCandle(buf, &hdr.Candles[j])
			}
			_, err := f.Write(buf)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadCandlesMeta parses the candle index, returning it and the bytes
// consumed.
func ReadCandlesMeta(r io.Reader) (*models.CandlesMeta, int, error) {
	var b [16]byte
	n, err := io.ReadFull(r, b[:4])
	if err != nil {
		return nil, n, fmt.Errorf("candles meta: %w", err)
	}
	if b[0] != TagCandlesMeta || b[1] != 0 {
		return nil, n, fmt.Errorf("candles meta tag 0x%02x 0x%02x: %w", b[0], b[1], models.ErrInvalidMarker)
	}
	count := int(binary.LittleEndian.Uint16(b[2:4]))

	m := &models.CandlesMeta{}
	for i := 0; i < count; i++ {
		nn, err := io.ReadFull(r, b[:16])
		n += nn
		if err != nil {
			return nil, n, fmt.Errorf("candle header: %w", err)
		}
		if b[0] != TagCandleHeader || b[1] != 0 {
			return nil, n, fmt.Errorf("candle header tag 0x%02x 0x%02x: %w", b[0], b[1], models.ErrInvalidMarker)
		}
		res := binary.LittleEndian.Uint16(b[2:4])
		start := int(int32(binary.LittleEndian.Uint32(b[4:8])))
		cnt := int(binary.LittleEndian.Uint32(b[8:12]))
		off := binary.LittleEndian.Uint32(b[12:16])
		if res == 0 || start < 0 || start >= 86400 || cnt < 0 {
			return nil, n, fmt.Errorf("candle header res=%d start=%d count=%d: %w",
				res, start, cnt, models.ErrCorruptMetadata)
		}
		hdr := models.NewCandleHeader(res, start, start+cnt*int(res))
		hdr.DataOffset = off
		m.Headers = append(m.Headers, hdr)
	}

	for i := range m.Headers {
		hdr := &m.Headers[i]
		cb := make([]byte, len(hdr.Candles)*models.CandleSize)
		nn, err := io.ReadFull(r, cb)
		n += nn
		if err != nil {
			return nil, n, fmt.Errorf("candles res=%d: %w", hdr.Resolution, err)
		}
		for j := range hdr.Candles {
			hdr.Candles[j] = decodeCandle(cb[j*models.CandleSize:])
		}
	}
	return m, n, nil
}

// WriteBeginData emits the begin-data marker.
func WriteBeginData(f io.Writer) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], models.BeginStreamData)
	_, err := f.Write(b[:])
	return err
}

// ReadBeginData consumes and verifies the begin-data marker.
func ReadBeginData(r io.Reader) (int, error) {
	var b [4]byte
	n, err := io.ReadFull(r, b[:])
	if err != nil {
		return n, fmt.Errorf("begin-data marker: %w", err)
	}
	if v := binary.LittleEndian.Uint32(b[:]); v != models.BeginStreamData {
		return n, fmt.Errorf("begin-data marker 0x%08x: %w", v, models.ErrInvalidMarker)
	}
	return n, nil
}
