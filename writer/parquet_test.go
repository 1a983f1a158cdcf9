package writer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/saleyn/sdb/models"
)

func TestExportCandles(t *testing.T) {
	hdr := models.NewHeader("KRX", "KR4101", "KR4101K60008", 1,
		time.Date(2015, 10, 15, 0, 0, 0, 0, time.UTC), "KST", 9*3600, 5, 0.01, uuid.New())

	m := models.NewCandlesMeta(models.NewCandleHeader(60, 9*3600, 15*3600))
	m.UpdateCandles(10*3600, 150, 100)
	m.UpdateCandles(10*3600+10, 148, -50)

	out := filepath.Join(t.TempDir(), "candles.parquet")
	if err := ExportCandles(out, hdr, &m, "snappy"); err != nil {
		t.Fatalf("export: %v", err)
	}

	fi, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Size() == 0 {
		t.Fatalf("empty parquet file")
	}
}
