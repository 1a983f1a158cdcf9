package models

// Sample is a decoded record from the data section. Concrete types are
// SecondsSample, QuoteSample and TradeSample.
type Sample interface {
	Type() StreamType
	sample()
}

// SecondsSample advances the reader's current-second baseline. Time is
// seconds since UTC midnight (24-bit range).
type SecondsSample struct {
	Time int
}

func (*SecondsSample) Type() StreamType { return StreamSeconds }
func (*SecondsSample) sample()          {}

// PxLevel is a decoded book level: absolute price in steps and the stored
// signed quantity.
type PxLevel struct {
	Px  PriceT
	Qty int
}

// QuoteSample is a decoded order-book snapshot. Time is microseconds after
// the current Seconds marker. Bids are ordered ascending up to the best
// bid; asks ascending from the best ask.
type QuoteSample struct {
	Time int
	Bids []PxLevel
	Asks []PxLevel
}

func (*QuoteSample) Type() StreamType { return StreamQuotes }
func (*QuoteSample) sample()          {}

// BestBid returns the highest bid, or nil for an empty side.
func (q *QuoteSample) BestBid() *PxLevel {
	if len(q.Bids) == 0 {
		return nil
	}
	return &q.Bids[len(q.Bids)-1]
}

// BestAsk returns the lowest ask, or nil for an empty side.
func (q *QuoteSample) BestAsk() *PxLevel {
	if len(q.Asks) == 0 {
		return nil
	}
	return &q.Asks[0]
}

// FieldMask is the trade record's presence/flags byte, LSB first:
// internal:1 aggr:2 side:1 has_qty:1 has_trade_id:1 has_order_id:1
// reserved:1.
type FieldMask struct {
	Internal   bool
	Aggr       Aggr
	Side       Side
	HasQty     bool
	HasTradeID bool
	HasOrderID bool
}

// Pack encodes the mask into its wire byte.
func (m FieldMask) Pack() byte {
	var b byte
	if m.Internal {
		b |= 1 << 0
	}
	b |= byte(m.Aggr&0x3) << 1
	if m.Side == Sell {
		b |= 1 << 3
	}
	if m.HasQty {
		b |= 1 << 4
	}
	if m.HasTradeID {
		b |= 1 << 5
	}
	if m.HasOrderID {
		b |= 1 << 6
	}
	return b
}

// UnpackFieldMask decodes the wire byte of a trade's field mask.
func UnpackFieldMask(b byte) FieldMask {
	m := FieldMask{
		Internal:   b&(1<<0) != 0,
		Aggr:       Aggr(b >> 1 & 0x3),
		HasQty:     b&(1<<4) != 0,
		HasTradeID: b&(1<<5) != 0,
		HasOrderID: b&(1<<6) != 0,
	}
	if b&(1<<3) != 0 {
		m.Side = Sell
	}
	return m
}

// TradeSample is a decoded trade event. Time is microseconds after the
// current Seconds marker; Px is absolute in price steps.
type TradeSample struct {
	Time    int
	Mask    FieldMask
	Px      PriceT
	Qty     int
	TradeID uint64
	OrderID uint64
}

func (*TradeSample) Type() StreamType { return StreamTrade }
func (*TradeSample) sample()          {}

func (t *TradeSample) Side() Side       { return t.Mask.Side }
func (t *TradeSample) Aggr() Aggr       { return t.Mask.Aggr }
func (t *TradeSample) HasQty() bool     { return t.Mask.HasQty }
func (t *TradeSample) HasTradeID() bool { return t.Mask.HasTradeID }
func (t *TradeSample) HasOrderID() bool { return t.Mask.HasOrderID }
