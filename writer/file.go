// Package writer creates SDB files: it drives the phased metadata layout,
// appends delta-coded quote and trade records, maintains the candle index
// and back-patches the reserved offsets on close.
package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/saleyn/sdb/codec"
	"github.com/saleyn/sdb/logger"
	"github.com/saleyn/sdb/models"
)

// Options identify the instrument and day of a new file.
type Options struct {
	Dir     string
	DeepDir bool

	Exchange   string
	Symbol     string
	Instrument string
	SecID      int64

	// Date is any instant of the recorded UTC day.
	Date time.Time

	TZName   string
	TZOffset int // seconds east of UTC

	Depth  uint8 // per-side book depth cap, at most models.MaxDepthLimit
	PxStep float64

	Perm os.FileMode // file permissions, default 0640
	UUID uuid.UUID   // zero value generates a random one
}

type phase int

const (
	phaseInit phase = iota
	phaseHeader
	phaseStreamsMeta
	phaseCandlesMeta
	phaseData
)

func (p phase) String() string {
	switch p {
	case phaseInit:
		return "Init"
	case phaseHeader:
		return "WrHeader"
	case phaseStreamsMeta:
		return "WrStreamsMeta"
	case phaseCandlesMeta:
		return "WrCandlesMeta"
	}
	return "WrData"
}

// File is a write-mode SDB file. It owns its handle exclusively; methods
// must be called from one goroutine.
type File struct {
	f    *os.File
	name string
	hdr  *models.Header

	streams models.StreamsMeta
	candles models.CandlesMeta

	phase phase

	lastTS     time.Time
	lastSec    int
	lastUsec   int
	nextSecond int

	lastQuotePx  models.PriceT
	lastTradePx  models.PriceT
	quotePxValid bool
	tradePxValid bool

	buf []byte
	log *logger.Entry
}

// Open creates the file named by opts and writes its header. The file must
// not already contain data: reopening for append is not supported.
func Open(opts Options) (*File, error) {
	if opts.Depth == 0 || opts.Depth > models.MaxDepthLimit {
		return nil, fmt.Errorf("depth %d: %w", opts.Depth, models.ErrInvalidPriceLevelCount)
	}
	if opts.PxStep <= 0 {
		return nil, fmt.Errorf("px-step %v: %w", opts.PxStep, models.ErrUndefinedPriceUnit)
	}
	if opts.Perm == 0 {
		opts.Perm = 0o640
	}
	if opts.UUID == uuid.Nil {
		opts.UUID = uuid.New()
	}

	name := Filename(opts.Dir, opts.DeepDir, opts.Exchange, opts.Symbol, opts.Instrument, opts.Date)
	if err := os.MkdirAll(filepath.Dir(name), 0o750); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, opts.Perm)
	if err != nil {
		return nil, err
	}
	if fi, err := f.Stat(); err != nil {
		f.Close()
		return nil, err
	} else if fi.Size() != 0 {
		f.Close()
		return nil, fmt.Errorf("file %s is not empty: %w", name, models.ErrInvalidWritePhase)
	}

	w := &File{
		f:    f,
		name: name,
		hdr: models.NewHeader(opts.Exchange, opts.Symbol, opts.Instrument, opts.SecID,
			opts.Date, opts.TZName, opts.TZOffset, opts.Depth, opts.PxStep, opts.UUID),
		log: logger.GetLogger().WithComponent("sdb_writer"),
	}
	if _, err := codec.WriteHeader(f, w.hdr); err != nil {
		f.Close()
		return nil, w.errf(err, "write header")
	}
	w.phase = phaseHeader

	w.log.WithFields(logger.Fields{
		"file":  name,
		"depth": opts.Depth,
		"step":  opts.PxStep,
	}).Debug("sdb file created")
	return w, nil
}

// Info returns the file header.
func (w *File) Info() *models.Header { return w.hdr }

// Filename returns the path the file was created at.
func (w *File) Filename() string { return w.name }

// Midnight returns the UTC midnight of the recorded day.
func (w *File) Midnight() time.Time { return w.hdr.Date }

// Time returns the last written timestamp.
func (w *File) Time() time.Time { return w.lastTS }

// Candles exposes the in-memory candle index.
func (w *File) Candles() *models.CandlesMeta { return &w.candles }

func (w *File) pos() int64 {
	p, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1
	}
	return p
}

func (w *File) errf(err error, op string) error {
	return fmt.Errorf("%s %s at offset %d: %w", op, w.name, w.pos(), err)
}

func (w *File) phaseErr(op string, want phase) error {
	return fmt.Errorf("%s on %s in phase %s (want %s): %w",
		op, w.name, w.phase, want, models.ErrInvalidWritePhase)
}

// WriteStreamsMeta declares the streams this file will carry. Must directly
// follow Open.
func (w *File) WriteStreamsMeta(types []models.StreamType) error {
	if w.phase != phaseHeader {
		return w.phaseErr("WriteStreamsMeta", phaseHeader)
	}
	for _, st := range types {
		if !st.Valid() {
			return fmt.Errorf("stream type %d: %w", st, models.ErrCorruptMetadata)
		}
	}
	w.streams = models.StreamsMeta{Compression: models.CompressNone, Streams: types}
	if err := codec.WriteStreamsMeta(w.f, &w.streams); err != nil {
		return w.errf(err, "write streams meta")
	}
	w.phase = phaseStreamsMeta
	return nil
}

// WriteCandlesMeta reserves the candle index, back-patches the begin-data
// offset and emits the begin-data marker, entering the data phase.
func (w *File) WriteCandlesMeta(m models.CandlesMeta) error {
	if w.phase != phaseStreamsMeta {
		return w.phaseErr("WriteCandlesMeta", phaseStreamsMeta)
	}
	if err := codec.WriteCandlesMeta(w.f, &m); err != nil {
		return w.errf(err, "write candles meta")
	}
	w.candles = m
	w.phase = phaseCandlesMeta

	off := w.pos()
	if err := codec.PatchDataOffset(w.f, &w.streams, uint32(off)); err != nil {
		return w.errf(err, "patch data offset")
	}
	if err := codec.WriteBeginData(w.f); err != nil {
		return w.errf(err, "write begin-data marker")
	}
	w.phase = phaseData
	return nil
}

// writeSeconds accounts ts and, when its second is new, stamps candle data
// offsets and emits a Seconds marker. Reports whether a marker was written.
func (w *File) writeSeconds(ts time.Time) (bool, error) {
	sinceMid := ts.Sub(w.hdr.Date)
	w.lastTS = ts
	w.lastSec = int(sinceMid / time.Second)
	w.lastUsec = int(sinceMid % time.Second / time.Microsecond)

	if w.nextSecond != 0 && w.lastSec < w.nextSecond {
		return false, nil
	}
	w.candles.UpdateDataOffset(w.lastSec, uint64(w.pos()))

	w.buf = codec.AppendSeconds(w.buf[:0], w.lastSec)
	if _, err := w.f.Write(w.buf); err != nil {
		return false, w.errf(err, "write seconds marker")
	}
	w.nextSecond = w.lastSec + 1
	w.quotePxValid = false
	w.tradePxValid = false
	return true, nil
}

// WriteQuotes appends one book snapshot. Bids must be sorted best-first
// (descending price), asks best-first (ascending price); prices are in the
// given unit, quantities signed as the source reports them.
func (w *File) WriteQuotes(ts time.Time, unit models.PriceUnit, bids, asks []models.Level) error {
	if w.phase != phaseData {
		return w.phaseErr("WriteQuotes", phaseData)
	}
	bidCnt, askCnt := len(bids), len(asks)
	if bidCnt+askCnt == 0 {
		return nil
	}
	if bidCnt > w.hdr.Depth || askCnt > w.hdr.Depth ||
		bidCnt > models.MaxDepthLimit || askCnt > models.MaxDepthLimit {
		return fmt.Errorf("bids=%d asks=%d depth=%d: %w",
			bidCnt, askCnt, w.hdr.Depth, models.ErrInvalidPriceLevelCount)
	}
	if ts.Before(w.lastTS) {
		return fmt.Errorf("quote at %s before %s in %s: %w",
			ts.Format(time.RFC3339Nano), w.lastTS.Format(time.RFC3339Nano),
			w.name, models.ErrOutOfOrderTimestamp)
	}

	prevUsec := w.lastUsec
	secChng, err := w.writeSeconds(ts)
	if err != nil {
		return err
	}
	delta := !secChng && w.quotePxValid
	encUsec := w.lastUsec
	if delta {
		encUsec = w.lastUsec - prevUsec
	}

	// Stored order: bids ascending up to the best, then asks ascending.
	levels := make([]models.PxLevel, 0, bidCnt+askCnt)
	var firstPx, prevPx models.PriceT
	add := func(l models.Level) error {
		px, err := w.hdr.ToSteps(unit, l.Px)
		if err != nil {
			return w.errf(err, "normalize price")
		}
		if len(levels) == 0 {
			firstPx = px
			enc := px
			if delta {
				enc = px - w.lastQuotePx
			}
			levels = append(levels, models.PxLevel{Px: enc, Qty: l.Qty})
		} else {
			levels = append(levels, models.PxLevel{Px: px - prevPx, Qty: l.Qty})
		}
		prevPx = px
		return nil
	}
	for i := bidCnt - 1; i >= 0; i-- {
		if err := add(bids[i]); err != nil {
			return err
		}
	}
	for i := 0; i < askCnt; i++ {
		if err := add(asks[i]); err != nil {
			return err
		}
	}
	w.lastQuotePx = firstPx
	w.quotePxValid = true

	w.buf = codec.AppendQuote(w.buf[:0], delta, encUsec, bidCnt, askCnt, levels)
	if _, err := w.f.Write(w.buf); err != nil {
		return w.errf(err, "write quote")
	}
	return nil
}

// WriteTrade appends one trade event and folds it into every candle
// resolution. qty is unsigned; side selects the candle volume bucket.
func (w *File) WriteTrade(ts time.Time, unit models.PriceUnit, side models.Side,
	px float64, qty int, aggr models.Aggr, orderID, tradeID uint64) error {

	if w.phase != phaseData {
		return w.phaseErr("WriteTrade", phaseData)
	}
	if ts.Before(w.lastTS) {
		return fmt.Errorf("trade at %s before %s in %s: %w",
			ts.Format(time.RFC3339Nano), w.lastTS.Format(time.RFC3339Nano),
			w.name, models.ErrOutOfOrderTimestamp)
	}
	steps, err := w.hdr.ToSteps(unit, px)
	if err != nil {
		return w.errf(err, "normalize price")
	}

	prevUsec := w.lastUsec
	secChng, err := w.writeSeconds(ts)
	if err != nil {
		return err
	}
	delta := !secChng && w.tradePxValid
	encUsec := w.lastUsec
	if delta {
		encUsec = w.lastUsec - prevUsec
	}
	encPx := steps
	if delta {
		encPx = steps - w.lastTradePx
	}
	w.lastTradePx = steps
	w.tradePxValid = true

	mask := models.FieldMask{
		Aggr:       aggr,
		Side:       side,
		HasQty:     qty != 0,
		HasTradeID: tradeID != 0,
		HasOrderID: orderID != 0,
	}
	w.buf = codec.AppendTrade(w.buf[:0], delta, encUsec, mask, encPx, qty, tradeID, orderID)
	if _, err := w.f.Write(w.buf); err != nil {
		return w.errf(err, "write trade")
	}

	signed := qty
	if side == models.Sell {
		signed = -qty
	}
	w.candles.UpdateCandles(w.lastSec, steps, signed)
	return nil
}

// AddCandleVolumes folds buy/sell volume into the candles covering ts
// without writing a record.
func (w *File) AddCandleVolumes(ts time.Time, buyQty, sellQty int) {
	sec := int(ts.Sub(w.hdr.Date) / time.Second)
	w.candles.AddCandleVolumes(sec, buyQty, sellQty)
}

// Close commits the candle index into its reserved slots and releases the
// file handle.
func (w *File) Close() error {
	if w.f == nil {
		return nil
	}
	var err error
	if w.phase >= phaseCandlesMeta {
		err = codec.CommitCandles(w.f, &w.candles)
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.f = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", w.name, err)
	}
	w.log.WithFields(logger.Fields{"file": w.name}).Debug("sdb file closed")
	return nil
}
