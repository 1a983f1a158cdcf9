package capture

import (
	"testing"
	"time"

	"github.com/saleyn/sdb/models"
)

func TestParseBookMessage(t *testing.T) {
	data := []byte(`{"type":"book","symbol":"KR4101","ts":1444899600000000,
		"bids":[[1.10,30],[1.05,20]],"asks":[[1.11,20],[1.16,40]]}`)

	rec, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Kind != models.FeedBook || rec.Symbol != "KR4101" {
		t.Fatalf("record: %+v", rec)
	}
	want := time.UnixMicro(1444899600000000).UTC()
	if !rec.Time.Equal(want) {
		t.Errorf("time %v, want %v", rec.Time, want)
	}
	if len(rec.Bids) != 2 || rec.Bids[0] != (models.Level{Px: 1.10, Qty: 30}) {
		t.Errorf("bids: %+v", rec.Bids)
	}
	if len(rec.Asks) != 2 || rec.Asks[1] != (models.Level{Px: 1.16, Qty: 40}) {
		t.Errorf("asks: %+v", rec.Asks)
	}
}

func TestParseTradeMessage(t *testing.T) {
	data := []byte(`{"type":"trade","symbol":"KR4101","ts":1444899605000000,
		"px":1.48,"qty":50,"side":"sell","aggr":"aggressor","trade_id":77,"order_id":88}`)

	rec, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rec.Kind != models.FeedTrade || rec.Px != 1.48 || rec.Qty != 50 {
		t.Fatalf("record: %+v", rec)
	}
	if rec.Side != models.Sell || rec.Aggr != models.Aggressor {
		t.Errorf("side/aggr: %v %v", rec.Side, rec.Aggr)
	}
	if rec.TradeID != 77 || rec.OrderID != 88 {
		t.Errorf("ids: %d %d", rec.TradeID, rec.OrderID)
	}
}

func TestParseMessageErrors(t *testing.T) {
	if _, err := ParseMessage([]byte(`{"type":"heartbeat"}`)); err == nil {
		t.Errorf("unknown type must fail")
	}
	if _, err := ParseMessage([]byte(`not json`)); err == nil {
		t.Errorf("bad json must fail")
	}
}
