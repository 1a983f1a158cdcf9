// sdbdump prints the contents of an SDB market-data file: header info,
// candles of a chosen resolution, or the quote/trade stream in a
// delimited text format.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/saleyn/sdb/logger"
	"github.com/saleyn/sdb/models"
	"github.com/saleyn/sdb/reader"
)

type options struct {
	file     string
	output   string
	info     bool
	quotes   bool
	trades   bool
	candles  string
	maxDepth int
	pxOnly   bool
	epoch    bool
	withDate bool
	tzLocal  bool
	delim    string
	pxDelim  string
	qtyDelim string
	debug    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.file, "f", "", "SDB filename to read")
	flag.StringVar(&opts.output, "o", "", "output filename (default: stdout)")
	flag.BoolVar(&opts.info, "i", false, "print file header info")
	flag.BoolVar(&opts.quotes, "Q", false, "print quotes")
	flag.BoolVar(&opts.trades, "T", false, "print trades")
	flag.StringVar(&opts.candles, "C", "", "print candles of given resolution (e.g. 30s, 10m, 1h)")
	flag.IntVar(&opts.maxDepth, "m", 0, "limit book depth to this number of levels")
	flag.BoolVar(&opts.pxOnly, "p", false, "don't display quantity information")
	flag.BoolVar(&opts.epoch, "epoch", false, "output time as integer microseconds since epoch")
	flag.BoolVar(&opts.withDate, "D", false, "include YYYYMMDD in timestamp output")
	flag.BoolVar(&opts.tzLocal, "z", false, "format time in the file's local time zone")
	flag.StringVar(&opts.delim, "delim", "|", "field delimiter")
	flag.StringVar(&opts.pxDelim, "px-delim", " ", "price level delimiter")
	flag.StringVar(&opts.qtyDelim, "qty-delim", "@", "quantity delimiter")
	flag.BoolVar(&opts.debug, "d", false, "enable debug printouts")
	flag.Parse()

	log := logger.GetLogger()
	if opts.debug {
		if err := log.Configure("debug", "text", "stderr", 0); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if opts.file == "" {
		flag.Usage()
		os.Exit(1)
	}
	if !opts.info && !opts.quotes && !opts.trades && opts.candles == "" {
		opts.quotes, opts.trades = true, true
	}

	out := os.Stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			log.WithError(err).Error("cannot create output file")
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}
	w := bufio.NewWriter(out)
	defer w.Flush()

	r, err := reader.Open(opts.file)
	if err != nil {
		log.WithError(err).Error("cannot open sdb file")
		os.Exit(1)
	}
	defer r.Close()

	switch {
	case opts.info:
		printInfo(w, r)
	case opts.candles != "":
		res, err := parseResolution(opts.candles)
		if err != nil {
			log.WithError(err).Error("invalid candle resolution")
			os.Exit(1)
		}
		if err := printCandles(w, r, res); err != nil {
			log.WithError(err).Error("cannot print candles")
			os.Exit(1)
		}
	default:
		if err := printStream(w, r, &opts); err != nil {
			log.WithError(err).Error("cannot read sdb file")
			os.Exit(1)
		}
	}
}

// parseResolution turns "30s", "10m" or "1h" into seconds.
func parseResolution(s string) (int, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("resolution %q is too short", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("resolution %q has invalid interval", s)
	}
	switch s[len(s)-1] {
	case 's':
		return n, nil
	case 'm':
		return n * 60, nil
	case 'h':
		return n * 3600, nil
	}
	return 0, fmt.Errorf("resolution %q has invalid unit (want s, m or h)", s)
}

func printInfo(w *bufio.Writer, r *reader.Reader) {
	h := r.Info()
	streams := make([]string, 0, len(r.Streams()))
	for _, st := range r.Streams() {
		streams = append(streams, st.String())
	}
	fmt.Fprintf(w, "Version....: %d\n", h.Version)
	fmt.Fprintf(w, "Date.......: %s (%s)\n", h.Date.Format("2006-01-02"), h.TZ())
	fmt.Fprintf(w, "Exchange...: %s\n", h.Exchange)
	fmt.Fprintf(w, "Symbol.....: %s\n", h.Symbol)
	fmt.Fprintf(w, "Instrument.: %s\n", h.Instrument)
	fmt.Fprintf(w, "SecID......: %d\n", h.SecID)
	fmt.Fprintf(w, "Depth......: %d\n", h.Depth)
	fmt.Fprintf(w, "PxStep.....: %.*f\n", h.PxPrecision, h.PxStep)
	fmt.Fprintf(w, "PxPrecision: %d\n", h.PxPrecision)
	fmt.Fprintf(w, "PxScale....: %d\n", h.PxScale)
	fmt.Fprintf(w, "UUID.......: %s\n", h.UUID)
	fmt.Fprintf(w, "Streams....: %s\n", strings.Join(streams, ", "))
}

func printCandles(w *bufio.Writer, r *reader.Reader, resolution int) error {
	h := r.Info()
	for i := range r.Candles().Headers {
		ch := &r.Candles().Headers[i]
		if int(ch.Resolution) != resolution {
			continue
		}
		for j := range ch.Candles {
			c := &ch.Candles[j]
			if c.DataOffset == 0 && c.Volume() == 0 && c.Open == 0 {
				continue
			}
			sec := ch.CandleToTime(j)
			fmt.Fprintf(w, "%02d:%02d:%02d|o=%.*f|h=%.*f|l=%.*f|c=%.*f|bv=%d|sv=%d\n",
				sec/3600, sec%3600/60, sec%60,
				h.PxPrecision, h.StepsToPx(c.Open),
				h.PxPrecision, h.StepsToPx(c.High),
				h.PxPrecision, h.StepsToPx(c.Low),
				h.PxPrecision, h.StepsToPx(c.Close),
				c.BuyVol, c.SellVol)
		}
		return nil
	}
	return fmt.Errorf("no candles of resolution %ds in file", resolution)
}

type streamPrinter struct {
	w    *bufio.Writer
	opts *options
	hdr  *models.Header
	loc  *time.Location

	curSec int
}

func printStream(w *bufio.Writer, r *reader.Reader, opts *options) error {
	p := &streamPrinter{w: w, opts: opts, hdr: r.Info(), loc: time.UTC}
	if opts.tzLocal {
		p.loc = time.FixedZone(p.hdr.TZName, p.hdr.TZOffset)
	}
	return r.Read(p.visit)
}

func (p *streamPrinter) visit(s models.Sample) bool {
	switch rec := s.(type) {
	case *models.SecondsSample:
		p.curSec = rec.Time
	case *models.QuoteSample:
		if p.opts.quotes {
			p.printQuote(rec)
		}
	case *models.TradeSample:
		if p.opts.trades {
			p.printTrade(rec)
		}
	}
	return true
}

func (p *streamPrinter) timestamp(usec int) string {
	t := p.hdr.Date.Add(time.Duration(p.curSec)*time.Second + time.Duration(usec)*time.Microsecond)
	if p.opts.epoch {
		return strconv.FormatInt(t.UnixMicro(), 10)
	}
	layout := "15:04:05.000000"
	if p.opts.withDate {
		layout = "20060102 15:04:05.000000"
	}
	return t.In(p.loc).Format(layout)
}

func (p *streamPrinter) level(l *models.PxLevel) string {
	px := fmt.Sprintf("%.*f", p.hdr.PxPrecision, p.hdr.StepsToPx(l.Px))
	if p.opts.pxOnly {
		return px
	}
	return strconv.Itoa(l.Qty) + p.opts.qtyDelim + px
}

func (p *streamPrinter) printQuote(q *models.QuoteSample) {
	d := p.opts.delim
	fmt.Fprintf(p.w, "%s%s", p.timestamp(q.Time), d)
	if p.opts.quotes && p.opts.trades {
		fmt.Fprintf(p.w, "Q%s", d)
	}

	// Bids best-first, optionally depth-limited.
	bids, asks := q.Bids, q.Asks
	if m := p.opts.maxDepth; m > 0 {
		if len(bids) > m {
			bids = bids[len(bids)-m:]
		}
		if len(asks) > m {
			asks = asks[:m]
		}
	}
	parts := make([]string, 0, len(bids)+len(asks)+1)
	for i := len(bids) - 1; i >= 0; i-- {
		parts = append(parts, p.level(&bids[i]))
	}
	parts = append(parts, d)
	for i := range asks {
		parts = append(parts, p.level(&asks[i]))
	}
	fmt.Fprintln(p.w, strings.Join(parts, p.opts.pxDelim))
}

func (p *streamPrinter) printTrade(t *models.TradeSample) {
	d := p.opts.delim
	fmt.Fprintf(p.w, "%s%s", p.timestamp(t.Time), d)
	if p.opts.quotes && p.opts.trades {
		fmt.Fprintf(p.w, "T%s", d)
	}
	fmt.Fprintf(p.w, "%s%s", t.Side(), d)
	if t.HasQty() {
		fmt.Fprintf(p.w, "%d%s", t.Qty, p.opts.qtyDelim)
	}
	fmt.Fprintf(p.w, "%.*f%sAggr=%s", p.hdr.PxPrecision, p.hdr.StepsToPx(t.Px), d, t.Aggr())
	if t.HasTradeID() {
		fmt.Fprintf(p.w, "%sTrID=%d", d, t.TradeID)
	}
	if t.HasOrderID() {
		fmt.Fprintf(p.w, "%sOrdID=%d", d, t.OrderID)
	}
	fmt.Fprintln(p.w)
}
