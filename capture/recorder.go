package capture

import (
	"context"
	"fmt"
	"sync"

	"github.com/saleyn/sdb/config"
	"github.com/saleyn/sdb/internal/channel"
	"github.com/saleyn/sdb/logger"
	"github.com/saleyn/sdb/models"
	"github.com/saleyn/sdb/writer"
)

// Recorder drains normalized feed records and appends them to one daily SDB
// file per instrument, rolling to a new file at UTC midnight. Closed files
// are optionally archived to S3 and every record can be teed to Kafka.
type Recorder struct {
	config      *config.Config
	channels    *channel.Channels
	instruments map[string]config.InstrumentConfig
	files       map[string]*writer.File

	tee      *writer.RecordTee
	archiver *writer.Archiver
	tz       models.TZResolver

	ctx     context.Context
	wg      *sync.WaitGroup
	mu      sync.RWMutex
	running bool
	log     *logger.Log
}

func NewRecorder(cfg *config.Config, ch *channel.Channels, tee *writer.RecordTee, archiver *writer.Archiver) *Recorder {
	instruments := make(map[string]config.InstrumentConfig, len(cfg.Capture.Symbols))
	for _, ic := range cfg.Capture.Symbols {
		instruments[ic.Symbol] = ic
	}
	return &Recorder{
		config:      cfg,
		channels:    ch,
		instruments: instruments,
		files:       make(map[string]*writer.File),
		tee:         tee,
		archiver:    archiver,
		tz:          models.LocationResolver{},
		wg:          &sync.WaitGroup{},
		log:         logger.GetLogger(),
	}
}

// SetTZResolver overrides the default time-zone resolver.
func (r *Recorder) SetTZResolver(tz models.TZResolver) { r.tz = tz }

func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("recorder already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	r.log.WithComponent("recorder").WithFields(logger.Fields{
		"dir":         r.config.Storage.Dir,
		"instruments": len(r.instruments),
	}).Info("starting recorder")

	r.wg.Add(1)
	go r.run()
	return nil
}

// Stop drains the worker, then closes and archives all open files.
func (r *Recorder) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("recorder").Info("stopping recorder")
	r.wg.Wait()

	for symbol, f := range r.files {
		r.closeFile(symbol, f)
	}
	r.files = make(map[string]*writer.File)
	r.log.WithComponent("recorder").Info("recorder stopped")
}

func (r *Recorder) run() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case rec, ok := <-r.channels.Records:
			if !ok {
				return
			}
			r.handle(rec)
		}
	}
}

func (r *Recorder) handle(rec models.FeedRecord) {
	log := r.log.WithComponent("recorder").WithFields(logger.Fields{"symbol": rec.Symbol})

	ic, ok := r.instruments[rec.Symbol]
	if !ok {
		log.Debug("symbol not configured, skipping")
		return
	}

	f := r.files[rec.Symbol]
	if f != nil && !models.Midnight(rec.Time).Equal(f.Midnight()) {
		r.closeFile(rec.Symbol, f)
		delete(r.files, rec.Symbol)
		f = nil
	}
	if f == nil {
		var err error
		if f, err = r.openFile(ic, rec); err != nil {
			log.WithError(err).Error("failed to open sdb file")
			return
		}
		r.files[rec.Symbol] = f
	}

	var err error
	switch rec.Kind {
	case models.FeedBook:
		err = f.WriteQuotes(rec.Time, models.PxDouble, rec.Bids, rec.Asks)
	case models.FeedTrade:
		err = f.WriteTrade(rec.Time, models.PxDouble, rec.Side, rec.Px, rec.Qty,
			rec.Aggr, rec.OrderID, rec.TradeID)
	}
	if err != nil {
		log.WithError(err).Warn("failed to write record")
		return
	}
	logger.IncrementRecordsWritten(1)

	if r.tee != nil {
		r.tee.Publish(r.ctx, rec)
	}
}

func (r *Recorder) openFile(ic config.InstrumentConfig, rec models.FeedRecord) (*writer.File, error) {
	tzName := r.config.Capture.TZName
	tzOffset := 0
	if tzName == "" {
		tzName = "UTC"
	} else if r.tz != nil {
		off, err := r.tz.Resolve(tzName, rec.Time)
		if err != nil {
			return nil, fmt.Errorf("resolve timezone %s: %w", tzName, err)
		}
		tzOffset = off
	}

	f, err := writer.Open(writer.Options{
		Dir:        r.config.Storage.Dir,
		DeepDir:    r.config.Storage.DeepDir,
		Exchange:   r.config.Capture.Exchange,
		Symbol:     ic.Symbol,
		Instrument: ic.Instrument,
		SecID:      ic.SecID,
		Date:       rec.Time,
		TZName:     tzName,
		TZOffset:   tzOffset,
		Depth:      ic.Depth,
		PxStep:     ic.PxStep,
	})
	if err != nil {
		return nil, err
	}

	if err := f.WriteStreamsMeta([]models.StreamType{models.StreamQuotes, models.StreamTrade}); err != nil {
		f.Close()
		return nil, err
	}

	cc := r.config.Capture.Candles
	headers := make([]models.CandleHeader, 0, len(cc.Resolutions))
	for _, res := range cc.Resolutions {
		headers = append(headers, models.NewCandleHeader(uint16(res), cc.StartTime, cc.EndTime))
	}
	if err := f.WriteCandlesMeta(models.NewCandlesMeta(headers...)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (r *Recorder) closeFile(symbol string, f *writer.File) {
	log := r.log.WithComponent("recorder").WithFields(logger.Fields{
		"symbol": symbol,
		"file":   f.Filename(),
	})

	if err := f.Close(); err != nil {
		log.WithError(err).Error("failed to close sdb file")
		return
	}

	if pq := r.config.Export.Parquet; pq.Enabled {
		out := f.Filename() + ".candles.parquet"
		if err := writer.ExportCandles(out, f.Info(), f.Candles(), pq.Compression); err != nil {
			log.WithError(err).Warn("failed to export candles")
		}
	}

	if r.archiver != nil {
		if err := r.archiver.Archive(context.Background(), f.Filename()); err != nil {
			log.WithError(err).Warn("failed to archive file")
		}
	}
	r.log.LogMetric("recorder", "files_finalized", 1, "counter", logger.Fields{"symbol": symbol})
	log.Info("sdb file finalized")
}
