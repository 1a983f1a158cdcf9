package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/saleyn/sdb/models"
)

func TestStreamHeaderByte(t *testing.T) {
	b := StreamHeader(models.StreamQuotes, true)
	if b != 0x81 {
		t.Fatalf("header byte 0x%02x, want 0x81", b)
	}
	st, delta := SplitStreamHeader(b)
	if st != models.StreamQuotes || !delta {
		t.Fatalf("split: %v %v", st, delta)
	}
	st, delta = SplitStreamHeader(0x02)
	if st != models.StreamTrade || delta {
		t.Fatalf("split trade: %v %v", st, delta)
	}
}

func TestSecondsRoundTrip(t *testing.T) {
	enc := AppendSeconds(nil, 3600)
	if !bytes.Equal(enc, []byte{0x00, 0x90, 0x1C}) {
		t.Fatalf("seconds encoding % x", enc)
	}
	s, err := DecodeSeconds(bytes.NewReader(enc[1:]))
	if err != nil || s.Time != 3600 {
		t.Fatalf("decode: %+v, %v", s, err)
	}
}

func TestQuoteFullThenDelta(t *testing.T) {
	// Full quote: bids 100@10, 105@20 (ascending), ask 111@15.
	full := AppendQuote(nil, false, 0, 2, 1, []models.PxLevel{
		{Px: 100, Qty: 10}, {Px: 5, Qty: 20}, {Px: 6, Qty: 15},
	})

	var lastPx models.PriceT
	q, err := DecodeQuote(bytes.NewReader(full[1:]), false, 5, &lastPx)
	if err != nil {
		t.Fatalf("decode full: %v", err)
	}
	if len(q.Bids) != 2 || len(q.Asks) != 1 {
		t.Fatalf("counts: %d %d", len(q.Bids), len(q.Asks))
	}
	if q.Bids[0].Px != 100 || q.Bids[1].Px != 105 || q.Asks[0].Px != 111 {
		t.Fatalf("prices: %+v %+v", q.Bids, q.Asks)
	}
	if lastPx != 100 {
		t.Fatalf("lastPx %d, want 100", lastPx)
	}

	// Delta quote: first level +2 against lastPx, one ask +9.
	del := AppendQuote(nil, true, 500, 1, 1, []models.PxLevel{
		{Px: 2, Qty: 11}, {Px: 9, Qty: 21},
	})
	q2, err := DecodeQuote(bytes.NewReader(del[1:]), true, 5, &lastPx)
	if err != nil {
		t.Fatalf("decode delta: %v", err)
	}
	if q2.Time != 500 {
		t.Fatalf("time %d, want 500", q2.Time)
	}
	if q2.Bids[0].Px != 102 || q2.Asks[0].Px != 111 {
		t.Fatalf("delta prices: %+v %+v", q2.Bids, q2.Asks)
	}
	if lastPx != 102 {
		t.Fatalf("lastPx %d, want 102", lastPx)
	}
}

func TestQuoteDepthLimit(t *testing.T) {
	enc := AppendQuote(nil, false, 0, 6, 0, []models.PxLevel{
		{Px: 1}, {Px: 1}, {Px: 1}, {Px: 1}, {Px: 1}, {Px: 1},
	})
	var lastPx models.PriceT
	_, err := DecodeQuote(bytes.NewReader(enc[1:]), false, 5, &lastPx)
	if !errors.Is(err, models.ErrInvalidPriceLevelCount) {
		t.Fatalf("expected price level count error, got %v", err)
	}
}

func TestTradeRoundTrip(t *testing.T) {
	mask := models.FieldMask{
		Aggr:       models.Aggressor,
		Side:       models.Sell,
		HasQty:     true,
		HasTradeID: true,
		HasOrderID: true,
	}
	enc := AppendTrade(nil, false, 250, mask, 148, 50, 77, 88)

	var lastPx models.PriceT
	tr, err := DecodeTrade(bytes.NewReader(enc[1:]), false, &lastPx)
	if err != nil {
		t.Fatalf("decode trade: %v", err)
	}
	if tr.Time != 250 || tr.Px != 148 || tr.Qty != 50 {
		t.Fatalf("trade fields: %+v", tr)
	}
	if tr.Side() != models.Sell || tr.Aggr() != models.Aggressor {
		t.Fatalf("mask fields: %+v", tr.Mask)
	}
	if tr.TradeID != 77 || tr.OrderID != 88 {
		t.Fatalf("ids: %d %d", tr.TradeID, tr.OrderID)
	}
	if lastPx != 148 {
		t.Fatalf("lastPx %d", lastPx)
	}

	// Delta trade against the last price, optional fields absent.
	enc2 := AppendTrade(nil, true, 100, models.FieldMask{HasQty: true}, 4, 20, 0, 0)
	tr2, err := DecodeTrade(bytes.NewReader(enc2[1:]), true, &lastPx)
	if err != nil {
		t.Fatalf("decode delta trade: %v", err)
	}
	if tr2.Px != 152 || tr2.Qty != 20 {
		t.Fatalf("delta trade: %+v", tr2)
	}
	if tr2.HasTradeID() || tr2.HasOrderID() {
		t.Fatalf("unexpected ids: %+v", tr2)
	}
	if lastPx != 152 {
		t.Fatalf("lastPx %d", lastPx)
	}
}
