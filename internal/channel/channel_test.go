package channel

import (
	"testing"
	"time"

	"github.com/saleyn/sdb/models"
)

func TestSendRawDropsWhenFull(t *testing.T) {
	c := NewChannels(1, 1)

	msg := models.RawFeedMessage{Data: []byte("{}"), Received: time.Now()}
	if !c.SendRaw(msg) {
		t.Fatalf("first send should succeed")
	}
	if c.SendRaw(msg) {
		t.Fatalf("second send should drop")
	}

	stats := c.Stats()
	if stats.RawSent != 1 || stats.RawDropped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestSendRecord(t *testing.T) {
	c := NewChannels(1, 2)

	rec := models.FeedRecord{Kind: models.FeedTrade, Symbol: "KR4101", Px: 1.5, Qty: 10}
	if !c.SendRecord(rec) || !c.SendRecord(rec) {
		t.Fatalf("sends within buffer should succeed")
	}
	if c.SendRecord(rec) {
		t.Fatalf("send beyond buffer should drop")
	}

	got := <-c.Records
	if got.Symbol != "KR4101" || got.Qty != 10 {
		t.Fatalf("unexpected record: %+v", got)
	}

	stats := c.Stats()
	if stats.RecordsSent != 2 || stats.RecordsDropped != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
