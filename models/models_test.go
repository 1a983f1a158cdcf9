package models

import (
	"errors"
	"testing"
	"time"
)

func TestCandleHeaderSize(t *testing.T) {
	cases := []struct {
		start, end int
		res        uint16
		want       int
	}{
		{9 * 3600, 15 * 3600, 300, 72},
		{9 * 3600, 15 * 3600, 60, 360},
		{0, 100, 60, 2}, // partial trailing candle rounds up
		{100, 100, 60, 0},
	}
	for _, tc := range cases {
		h := NewCandleHeader(tc.res, tc.start, tc.end)
		if len(h.Candles) != tc.want {
			t.Errorf("count(%d,%d,%d) = %d, want %d",
				tc.start, tc.end, tc.res, len(h.Candles), tc.want)
		}
	}
}

func TestTimeToCandleBounds(t *testing.T) {
	h := NewCandleHeader(300, 9*3600, 15*3600)
	if h.TimeToCandle(9*3600-1) != nil {
		t.Errorf("before range should be nil")
	}
	if h.TimeToCandle(15*3600) != nil {
		t.Errorf("after range should be nil")
	}
	if h.TimeToCandle(9*3600) != &h.Candles[0] {
		t.Errorf("start maps to first candle")
	}
	if h.TimeToCandle(15*3600-1) != &h.Candles[71] {
		t.Errorf("end-1 maps to last candle")
	}
	if got := h.CandleToTime(1); got != 9*3600+300 {
		t.Errorf("CandleToTime(1) = %d", got)
	}
}

func TestUpdateCandleOHLCV(t *testing.T) {
	h := NewCandleHeader(60, 9*3600, 15*3600)
	ts := 10 * 3600

	// buy 100 @ 150, sell 50 @ 148, buy 20 @ 152
	if !h.UpdateCandle(ts, 150, 100) ||
		!h.UpdateCandle(ts+10, 148, -50) ||
		!h.UpdateCandle(ts+20, 152, 20) {
		t.Fatalf("updates in range must succeed")
	}

	c := h.TimeToCandle(ts)
	if c.Open != 150 || c.High != 152 || c.Low != 148 || c.Close != 152 {
		t.Errorf("ohlc: %+v", c)
	}
	if c.BuyVol != 120 || c.SellVol != 50 {
		t.Errorf("volumes: %+v", c)
	}
	if c.Volume() != 170 {
		t.Errorf("total volume: %d", c.Volume())
	}

	if h.UpdateCandle(16*3600, 150, 1) {
		t.Errorf("update outside range must fail")
	}
}

func TestUpdateDataOffsetFirstRecordWins(t *testing.T) {
	m := NewCandlesMeta(
		NewCandleHeader(60, 9*3600, 15*3600),
		NewCandleHeader(300, 9*3600, 15*3600),
	)
	ts := 9 * 3600

	m.UpdateDataOffset(ts, 1000)
	m.UpdateDataOffset(ts+1, 2000)  // same candle in both resolutions
	m.UpdateDataOffset(ts+60, 3000) // new 60s candle, same 300s candle

	if got := m.Headers[0].Candles[0].DataOffset; got != 1000 {
		t.Errorf("60s candle 0 offset %d, want 1000", got)
	}
	if got := m.Headers[0].Candles[1].DataOffset; got != 3000 {
		t.Errorf("60s candle 1 offset %d, want 3000", got)
	}
	if got := m.Headers[1].Candles[0].DataOffset; got != 1000 {
		t.Errorf("300s candle 0 offset %d, want 1000", got)
	}
}

func TestAddCandleVolumes(t *testing.T) {
	m := NewCandlesMeta(NewCandleHeader(60, 0, 3600))
	m.AddCandleVolumes(30, 7, 3)
	c := m.Headers[0].Candles[0]
	if c.BuyVol != 7 || c.SellVol != 3 || c.Open != 0 {
		t.Errorf("volumes without price update: %+v", c)
	}
}

func TestFieldMaskPackUnpack(t *testing.T) {
	masks := []FieldMask{
		{},
		{Internal: true},
		{Aggr: Aggressor},
		{Aggr: Passive, Side: Sell},
		{HasQty: true, HasTradeID: true, HasOrderID: true},
		{Internal: true, Aggr: Passive, Side: Sell, HasQty: true, HasTradeID: true, HasOrderID: true},
	}
	for _, m := range masks {
		if got := UnpackFieldMask(m.Pack()); got != m {
			t.Errorf("mask round trip: %+v -> 0x%02x -> %+v", m, m.Pack(), got)
		}
	}
	// Bit layout is LSB first: internal, aggr:2, side, qty, trade id, order id.
	m := FieldMask{Internal: true, Aggr: Passive, Side: Sell, HasQty: true}
	if got := m.Pack(); got != 0b0001_1101 {
		t.Errorf("packed 0b%08b", got)
	}
}

func TestNormalizePx(t *testing.T) {
	h := &Header{}
	h.SetPxStep(0.01)

	if px, err := h.ToSteps(PxDouble, 1.50); err != nil || px != 150 {
		t.Errorf("double: %d, %v", px, err)
	}
	if px, err := h.ToSteps(PxSteps, 150); err != nil || px != 150 {
		t.Errorf("steps: %d, %v", px, err)
	}
	if px, err := h.ToSteps(PxPrecision, 150); err != nil || px != 2 {
		t.Errorf("precision: %d, %v", px, err)
	}
	if _, err := h.ToSteps(PriceUnit(99), 1); !errors.Is(err, ErrUndefinedPriceUnit) {
		t.Errorf("undefined unit: %v", err)
	}

	if px := h.StepsToPx(150); px != 1.5 {
		t.Errorf("steps to px: %v", px)
	}
}

func TestMidnight(t *testing.T) {
	ts := time.Date(2015, 10, 15, 13, 45, 6, 789, time.UTC)
	want := time.Date(2015, 10, 15, 0, 0, 0, 0, time.UTC)
	if got := Midnight(ts); !got.Equal(want) {
		t.Errorf("midnight %v", got)
	}
}

func TestStreamTypes(t *testing.T) {
	if !StreamSeconds.Implemented() || !StreamQuotes.Implemented() || !StreamTrade.Implemented() {
		t.Errorf("core streams must be implemented")
	}
	for _, st := range []StreamType{StreamOrder, StreamSummary, StreamMessage} {
		if !st.Valid() || st.Implemented() {
			t.Errorf("%v must be reserved but valid", st)
		}
	}
	if StreamType(6).Valid() {
		t.Errorf("out-of-range type must be invalid")
	}
}
