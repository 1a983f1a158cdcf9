package writer

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/saleyn/sdb/models"
)

var testDate = time.Date(2015, 10, 15, 0, 0, 0, 0, time.UTC)

func testOptions(t *testing.T) Options {
	t.Helper()
	id, err := uuid.Parse("0f7f69c9-fc9d-4517-8318-706e3e58dadd")
	if err != nil {
		t.Fatalf("parse uuid: %v", err)
	}
	return Options{
		Dir:        t.TempDir(),
		Exchange:   "KRX",
		Symbol:     "KR4101",
		Instrument: "KR4101K60008",
		SecID:      1,
		Date:       testDate,
		TZName:     "KST",
		TZOffset:   9 * 3600,
		Depth:      5,
		PxStep:     0.01,
		UUID:       id,
	}
}

func openTestFile(t *testing.T, resolutions ...uint16) *File {
	t.Helper()
	w, err := Open(testOptions(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.WriteStreamsMeta([]models.StreamType{models.StreamQuotes, models.StreamTrade}); err != nil {
		t.Fatalf("streams meta: %v", err)
	}
	headers := make([]models.CandleHeader, 0, len(resolutions))
	for _, res := range resolutions {
		headers = append(headers, models.NewCandleHeader(res, 9*3600, 15*3600))
	}
	if err := w.WriteCandlesMeta(models.NewCandlesMeta(headers...)); err != nil {
		t.Fatalf("candles meta: %v", err)
	}
	return w
}

func TestFilenameConvention(t *testing.T) {
	if got := Filename("/db", false, "KRX", "KR4101", "KR4101K60008", testDate); got !=
		filepath.Join("/db", "20151015.KRX.KR4101.KR4101K60008.sdb") {
		t.Errorf("flat name: %s", got)
	}
	if got := Filename("/db", true, "KRX", "KR4101", "KR4101K60008", testDate); got !=
		filepath.Join("/db", "KRX", "KR4101", "2015", "10", "KR4101K60008.20151015.sdb") {
		t.Errorf("deep name: %s", got)
	}
	if got := Filename("/db", false, "X", "S", "A/B", testDate); got !=
		filepath.Join("/db", "20151015.X.S.A-B.sdb") {
		t.Errorf("slash mangling: %s", got)
	}
}

// Empty file with one 300s resolution over 09:00-15:00: 205-byte header,
// 11-byte streams meta, 20-byte candles meta, 72 32-byte candles and the
// 4-byte begin-data marker.
func TestEmptyFileSize(t *testing.T) {
	w := openTestFile(t, 300)
	name := w.Filename()
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	fi, err := os.Stat(name)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if fi.Size() != 2544 {
		t.Errorf("file size %d, want 2544", fi.Size())
	}
}

func TestWritePhaseViolations(t *testing.T) {
	w, err := Open(testOptions(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer w.Close()

	if err := w.WriteQuotes(testDate.Add(time.Hour), models.PxDouble,
		[]models.Level{{Px: 1.10, Qty: 10}}, nil); !errors.Is(err, models.ErrInvalidWritePhase) {
		t.Errorf("quotes before meta: %v", err)
	}
	if err := w.WriteTrade(testDate.Add(time.Hour), models.PxDouble, models.Buy,
		1.5, 1, models.AggrUndefined, 0, 0); !errors.Is(err, models.ErrInvalidWritePhase) {
		t.Errorf("trade before meta: %v", err)
	}
	if err := w.WriteCandlesMeta(models.NewCandlesMeta()); !errors.Is(err, models.ErrInvalidWritePhase) {
		t.Errorf("candles before streams: %v", err)
	}

	if err := w.WriteStreamsMeta([]models.StreamType{models.StreamQuotes}); err != nil {
		t.Fatalf("streams meta: %v", err)
	}
	if err := w.WriteStreamsMeta([]models.StreamType{models.StreamQuotes}); !errors.Is(err, models.ErrInvalidWritePhase) {
		t.Errorf("streams meta twice: %v", err)
	}
}

func TestOutOfOrderTimestampRejected(t *testing.T) {
	w := openTestFile(t, 300)
	defer w.Close()

	bids := []models.Level{{Px: 1.10, Qty: 30}}
	asks := []models.Level{{Px: 1.11, Qty: 20}}

	if err := w.WriteQuotes(testDate.Add(3605*time.Second), models.PxDouble, bids, asks); err != nil {
		t.Fatalf("first quote: %v", err)
	}
	sizeAfter, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		t.Fatalf("seek: %v", err)
	}

	err = w.WriteQuotes(testDate.Add(3600*time.Second), models.PxDouble, bids, asks)
	if !errors.Is(err, models.ErrOutOfOrderTimestamp) {
		t.Fatalf("expected out-of-order error, got %v", err)
	}

	// The stream up to the first quote is untouched.
	if pos, _ := w.f.Seek(0, io.SeekCurrent); pos != sizeAfter {
		t.Errorf("file advanced after rejected write: %d != %d", pos, sizeAfter)
	}
}

func TestDepthValidation(t *testing.T) {
	w := openTestFile(t, 300)
	defer w.Close()

	six := make([]models.Level, 6)
	for i := range six {
		six[i] = models.Level{Px: 1.10 - float64(i)*0.01, Qty: 1}
	}
	err := w.WriteQuotes(testDate.Add(time.Hour), models.PxDouble, six, nil)
	if !errors.Is(err, models.ErrInvalidPriceLevelCount) {
		t.Errorf("expected price level count error, got %v", err)
	}

	if _, err := Open(Options{Dir: t.TempDir(), Exchange: "X", Symbol: "S",
		Instrument: "I", Date: testDate, Depth: 16, PxStep: 0.01}); !errors.Is(err, models.ErrInvalidPriceLevelCount) {
		t.Errorf("depth 16 must be rejected: %v", err)
	}
}

func TestEmptyQuoteIsNoop(t *testing.T) {
	w := openTestFile(t, 300)
	defer w.Close()

	before, _ := w.f.Seek(0, io.SeekCurrent)
	if err := w.WriteQuotes(testDate.Add(time.Hour), models.PxDouble, nil, nil); err != nil {
		t.Fatalf("empty quote: %v", err)
	}
	if after, _ := w.f.Seek(0, io.SeekCurrent); after != before {
		t.Errorf("empty quote wrote %d bytes", after-before)
	}
}

func TestOpenRefusesNonEmptyFile(t *testing.T) {
	opts := testOptions(t)
	w, err := Open(opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := Open(opts); !errors.Is(err, models.ErrInvalidWritePhase) {
		t.Errorf("reopen of non-empty file: %v", err)
	}
}
