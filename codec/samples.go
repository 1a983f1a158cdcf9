package codec

import (
	"fmt"
	"io"

	"github.com/saleyn/sdb/models"
)

// StreamHeader builds a record's stream header byte: the type in the low
// 7 bits, the delta flag in the high bit.
func StreamHeader(t models.StreamType, delta bool) byte {
	b := byte(t) & 0x7F
	if delta {
		b |= 0x80
	}
	return b
}

// SplitStreamHeader is the inverse of StreamHeader.
func SplitStreamHeader(b byte) (models.StreamType, bool) {
	return models.StreamType(b & 0x7F), b&0x80 != 0
}

// AppendSeconds appends an encoded Seconds marker: header byte plus the
// signed LEB128 seconds since midnight.
func AppendSeconds(dst []byte, sec int) []byte {
	dst = append(dst, StreamHeader(models.StreamSeconds, false))
	return AppendSleb(dst, int64(sec))
}

// DecodeSeconds decodes a Seconds marker body (the header byte has already
// been consumed).
func DecodeSeconds(r io.ByteReader) (*models.SecondsSample, error) {
	sec, err := Sleb(r)
	if err != nil {
		return nil, err
	}
	return &models.SecondsSample{Time: int(sec)}, nil
}

// AppendQuote appends an encoded quote snapshot. The levels must already be
// delta-coded: the first level carries the absolute price (delta=false) or
// the difference from the previous quote's first level (delta=true), each
// subsequent level the difference from its predecessor. usec is the
// microsecond field as defined by the delta flag.
func AppendQuote(dst []byte, delta bool, usec, bidCnt, askCnt int, levels []models.PxLevel) []byte {
	dst = append(dst, StreamHeader(models.StreamQuotes, delta))
	dst = AppendUleb(dst, uint64(usec))
	dst = append(dst, byte(askCnt<<4|bidCnt))
	for i := range levels[:bidCnt+askCnt] {
		dst = AppendSleb(dst, int64(levels[i].Px))
		dst = AppendSleb(dst, int64(levels[i].Qty))
	}
	return dst
}

// DecodeQuote decodes a quote body, rebuilding absolute prices by running
// sum. lastPx carries the previous quote's first-level price in and this
// quote's first-level price out.
func DecodeQuote(r io.ByteReader, delta bool, maxDepth int, lastPx *models.PriceT) (*models.QuoteSample, error) {
	usec, err := Uleb(r)
	if err != nil {
		return nil, err
	}
	cb, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	bidCnt := int(cb & 0x0F)
	askCnt := int(cb >> 4 & 0x0F)
	if bidCnt > maxDepth || askCnt > maxDepth {
		return nil, fmt.Errorf("bids=%d asks=%d depth=%d: %w",
			bidCnt, askCnt, maxDepth, models.ErrInvalidPriceLevelCount)
	}

	levels := make([]models.PxLevel, bidCnt+askCnt)
	var prev models.PriceT
	for i := range levels {
		px, err := Sleb(r)
		if err != nil {
			return nil, err
		}
		qty, err := Sleb(r)
		if err != nil {
			return nil, err
		}
		p := models.PriceT(px)
		if i == 0 {
			if delta {
				p += *lastPx
			}
			*lastPx = p
		} else {
			p += prev
		}
		prev = p
		levels[i] = models.PxLevel{Px: p, Qty: int(qty)}
	}
	return &models.QuoteSample{
		Time: int(usec),
		Bids: levels[:bidCnt],
		Asks: levels[bidCnt:],
	}, nil
}

// AppendTrade appends an encoded trade event. px must already be delta-coded
// against the previous trade when delta is set.
func AppendTrade(dst []byte, delta bool, usec int, mask models.FieldMask,
	px models.PriceT, qty int, tradeID, orderID uint64) []byte {

	dst = append(dst, StreamHeader(models.StreamTrade, delta))
	dst = AppendUleb(dst, uint64(usec))
	dst = append(dst, mask.Pack())
	dst = AppendSleb(dst, int64(px))
	if mask.HasQty {
		dst = AppendSleb(dst, int64(qty))
	}
	if mask.HasTradeID {
		dst = AppendUleb(dst, tradeID)
	}
	if mask.HasOrderID {
		dst = AppendUleb(dst, orderID)
	}
	return dst
}

// DecodeTrade decodes a trade body. lastPx carries the previous trade price
// in and this trade's absolute price out.
func DecodeTrade(r io.ByteReader, delta bool, lastPx *models.PriceT) (*models.TradeSample, error) {
	usec, err := Uleb(r)
	if err != nil {
		return nil, err
	}
	mb, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	mask := models.UnpackFieldMask(mb)

	px, err := Sleb(r)
	if err != nil {
		return nil, err
	}
	p := models.PriceT(px)
	if delta {
		p += *lastPx
	}
	*lastPx = p

	t := &models.TradeSample{Time: int(usec), Mask: mask, Px: p}
	if mask.HasQty {
		qty, err := Sleb(r)
		if err != nil {
			return nil, err
		}
		t.Qty = int(qty)
	}
	if mask.HasTradeID {
		if t.TradeID, err = Uleb(r); err != nil {
			return nil, err
		}
	}
	if mask.HasOrderID {
		if t.OrderID, err = Uleb(r); err != nil {
			return nil, err
		}
	}
	return t, nil
}
