package models

// Candle aggregates trades over one time window. Prices are in price steps;
// DataOffset points at the first record of the window in the data stream
// (0 when the window saw no records).
type Candle struct {
	Open  PriceT
	High  PriceT
	Low   PriceT
	Close PriceT

	BuyVol  uint32
	SellVol uint32

	DataOffset uint64
}

// CandleSize is the on-disk byte size of one candle record: six 32-bit
// little-endian integers followed by a 64-bit little-endian offset.
const CandleSize = 32

// Volume is the total traded volume of the candle.
func (c *Candle) Volume() uint32 { return c.BuyVol + c.SellVol }

// CandleHeader is the index block for one resolution: a fixed array of
// candles covering [StartTime, StartTime+len*Resolution) seconds since UTC
// midnight.
type CandleHeader struct {
	Resolution uint16 // seconds per candle
	StartTime  int    // seconds since midnight
	Candles    []Candle

	// DataOffset is the absolute file position of this resolution's candle
	// array, filled while the metadata block is written.
	DataOffset uint32

	lastUpdated int // index of the candle last touched, -1 if none
}

// NewCandleHeader allocates the candle array for one resolution covering
// [startTime, endTime) seconds since midnight.
func NewCandleHeader(resolution uint16, startTime, endTime int) CandleHeader {
	return CandleHeader{
		Resolution:  resolution,
		StartTime:   startTime,
		Candles:     make([]Candle, candleCount(startTime, endTime, resolution)),
		lastUpdated: -1,
	}
}

func candleCount(start, end int, res uint16) int {
	diff := end - start
	if diff <= 0 {
		return 0
	}
	return (diff + int(res) - 1) / int(res)
}

// index maps a seconds-since-midnight timestamp to a candle slot, or -1
// when ts is outside the covered range.
func (h *CandleHeader) index(ts int) int {
	if ts < h.StartTime {
		return -1
	}
	n := (ts - h.StartTime) / int(h.Resolution)
	if n >= len(h.Candles) {
		return -1
	}
	return n
}

// TimeToCandle returns the candle covering ts, or nil when out of range.
func (h *CandleHeader) TimeToCandle(ts int) *Candle {
	n := h.index(ts)
	if n < 0 {
		return nil
	}
	return &h.Candles[n]
}

// CandleToTime converts a candle index back to its start second.
func (h *CandleHeader) CandleToTime(idx int) int {
	return h.StartTime + int(h.Resolution)*idx
}

// UpdateCandle folds one trade at ts seconds since midnight into the
// matching candle. Positive qty adds to buy volume, negative to sell.
// Returns false when ts is outside the indexed range.
func (h *CandleHeader) UpdateCandle(ts int, px PriceT, qty int) bool {
	n := h.index(ts)
	if n < 0 {
		return false
	}
	c := &h.Candles[n]
	if c.Open == 0 {
		c.Open = px
	}
	if c.High < px {
		c.High = px
	}
	if c.Low > px || c.Low == 0 {
		c.Low = px
	}
	c.Close = px

	if qty > 0 {
		c.BuyVol += uint32(qty)
	} else if qty < 0 {
		c.SellVol += uint32(-qty)
	}
	h.lastUpdated = n
	return true
}

// AddVolume adds buy/sell volume to the candle covering ts without touching
// its prices.
func (h *CandleHeader) AddVolume(ts, buyQty, sellQty int) bool {
	n := h.index(ts)
	if n < 0 {
		return false
	}
	h.Candles[n].BuyVol += uint32(buyQty)
	h.Candles[n].SellVol += uint32(sellQty)
	h.lastUpdated = n
	return true
}

// UpdateDataOffset stamps the candle covering ts with the file position of
// its first record. Only the first record entering a new candle slot takes
// effect.
func (h *CandleHeader) UpdateDataOffset(ts int, dataOffset uint64) {
	n := h.index(ts)
	if n < 0 || n == h.lastUpdated {
		return
	}
	h.Candles[n].DataOffset = dataOffset
	h.lastUpdated = n
}

// CandlesMeta is the candle index of a file: one CandleHeader per
// resolution, all indexing the same record stream.
type CandlesMeta struct {
	Headers []CandleHeader
}

// NewCandlesMeta builds the candle metadata from the given headers.
func NewCandlesMeta(headers ...CandleHeader) CandlesMeta {
	return CandlesMeta{Headers: headers}
}

// UpdateDataOffset records the position of the first record of a new candle
// in every resolution that ts begins.
func (m *CandlesMeta) UpdateDataOffset(ts int, dataOffset uint64) {
	for i := range m.Headers {
		m.Headers[i].UpdateDataOffset(ts, dataOffset)
	}
}

// UpdateCandles folds a trade into every resolution.
func (m *CandlesMeta) UpdateCandles(ts int, px PriceT, qty int) {
	for i := range m.Headers {
		m.Headers[i].UpdateCandle(ts, px, qty)
	}
}

// AddCandleVolumes adds buy/sell volume into every resolution.
func (m *CandlesMeta) AddCandleVolumes(ts, buyQty, sellQty int) {
	for i := range m.Headers {
		m.Headers[i].AddVolume(ts, buyQty, sellQty)
	}
}

// StreamsMeta describes the streams recorded in a file and where the data
// section begins.
type StreamsMeta struct {
	Compression CompressT
	Streams     []StreamType

	// DataOffset is the absolute position of the begin-data marker;
	// zero until back-patched.
	DataOffset uint32

	// DataOffsetPos is the file position of the DataOffset slot,
	// remembered by the writer for back-patching.
	DataOffsetPos int64
}
