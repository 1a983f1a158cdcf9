// Package capture records a live market-data feed into daily SDB files: a
// websocket feed producing raw JSON messages, a normalizer turning them
// into typed records, and a recorder appending them through the writer.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/saleyn/sdb/config"
	"github.com/saleyn/sdb/internal/channel"
	"github.com/saleyn/sdb/logger"
	"github.com/saleyn/sdb/models"
)

// Feed subscribes to a websocket market-data endpoint and forwards raw
// messages to the pipeline. Reconnects are paced by a rate limiter with
// exponential backoff between attempts.
type Feed struct {
	config   *config.Config
	channels *channel.Channels
	limiter  *rate.Limiter
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
}

func NewFeed(cfg *config.Config, ch *channel.Channels) *Feed {
	rps := cfg.Capture.RateLimit.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Capture.RateLimit.BurstSize
	if burst <= 0 {
		burst = 1
	}
	return &Feed{
		config:   cfg,
		channels: ch,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

// Start opens the websocket connection and begins streaming.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("feed already running")
	}
	f.running = true
	f.ctx = ctx
	f.mu.Unlock()

	if f.config.Capture.URL == "" {
		return fmt.Errorf("capture.url is not configured")
	}

	f.log.WithComponent("feed").WithFields(logger.Fields{
		"url":     f.config.Capture.URL,
		"symbols": len(f.config.Capture.Symbols),
	}).Info("starting feed")

	f.wg.Add(1)
	go f.run()
	return nil
}

// Stop waits for the stream goroutine to finish.
func (f *Feed) Stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()

	f.log.WithComponent("feed").Info("stopping feed")
	f.wg.Wait()
	f.log.WithComponent("feed").Info("feed stopped")
}

func (f *Feed) run() {
	defer f.wg.Done()

	log := f.log.WithComponent("feed")
	rc := f.config.Capture.Reconnect
	delay := rc.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	attempts := 0

	for {
		if f.ctx.Err() != nil {
			return
		}
		if err := f.limiter.Wait(f.ctx); err != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(f.ctx, f.config.Capture.URL, nil)
		if err != nil {
			attempts++
			if rc.MaxAttempts > 0 && attempts >= rc.MaxAttempts {
				log.WithError(err).Error("giving up on feed connection")
				return
			}
			log.WithError(err).WithFields(logger.Fields{"attempt": attempts}).Warn("dial failed")
			select {
			case <-f.ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if rc.MaxDelay > 0 && delay > rc.MaxDelay {
				delay = rc.MaxDelay
			}
			continue
		}

		attempts = 0
		delay = rc.BaseDelay
		if delay <= 0 {
			delay = time.Second
		}
		log.Info("feed connected")
		f.readLoop(conn)
		conn.Close()
	}
}

func (f *Feed) readLoop(conn *websocket.Conn) {
	log := f.log.WithComponent("feed")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-f.ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if f.ctx.Err() == nil {
				log.WithError(err).Warn("websocket read failed")
			}
			return
		}
		if !f.channels.SendRaw(models.RawFeedMessage{Data: data, Received: time.Now()}) {
			log.Warn("raw channel full, dropping message")
		}
	}
}

// wire format of the feed: one JSON object per message.
type wireLevel [2]float64 // price, quantity

type wireMsg struct {
	Type    string      `json:"type"` // "book" or "trade"
	Symbol  string      `json:"symbol"`
	TsUsec  int64       `json:"ts"` // microseconds since epoch
	Bids    []wireLevel `json:"bids"`
	Asks    []wireLevel `json:"asks"`
	Px      float64     `json:"px"`
	Qty     int         `json:"qty"`
	Side    string      `json:"side"` // "buy" or "sell"
	Aggr    string      `json:"aggr"` // "", "aggressor", "passive"
	TradeID uint64      `json:"trade_id"`
	OrderID uint64      `json:"order_id"`
}

// ParseMessage decodes one feed message into a normalized record.
func ParseMessage(data []byte) (models.FeedRecord, error) {
	var m wireMsg
	if err := json.Unmarshal(data, &m); err != nil {
		return models.FeedRecord{}, fmt.Errorf("feed message: %w", err)
	}

	rec := models.FeedRecord{
		Symbol: m.Symbol,
		Time:   time.UnixMicro(m.TsUsec).UTC(),
	}
	switch m.Type {
	case "book":
		rec.Kind = models.FeedBook
		for _, l := range m.Bids {
			rec.Bids = append(rec.Bids, models.Level{Px: l[0], Qty: int(l[1])})
		}
		for _, l := range m.Asks {
			rec.Asks = append(rec.Asks, models.Level{Px: l[0], Qty: int(l[1])})
		}
	case "trade":
		rec.Kind = models.FeedTrade
		rec.Px = m.Px
		rec.Qty = m.Qty
		if strings.EqualFold(m.Side, "sell") {
			rec.Side = models.Sell
		}
		switch strings.ToLower(m.Aggr) {
		case "aggressor":
			rec.Aggr = models.Aggressor
		case "passive":
			rec.Aggr = models.Passive
		}
		rec.TradeID = m.TradeID
		rec.OrderID = m.OrderID
	default:
		return models.FeedRecord{}, fmt.Errorf("feed message type %q", m.Type)
	}
	return rec, nil
}

// Normalizer drains raw feed messages, decodes them and forwards typed
// records to the recorder.
type Normalizer struct {
	channels *channel.Channels
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	ctx      context.Context
	log      *logger.Log
}

func NewNormalizer(ch *channel.Channels) *Normalizer {
	return &Normalizer{channels: ch, wg: &sync.WaitGroup{}, log: logger.GetLogger()}
}

func (n *Normalizer) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return fmt.Errorf("normalizer already running")
	}
	n.running = true
	n.ctx = ctx
	n.mu.Unlock()

	n.wg.Add(1)
	go n.run()
	return nil
}

func (n *Normalizer) Stop() {
	n.mu.Lock()
	n.running = false
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *Normalizer) run() {
	defer n.wg.Done()

	log := n.log.WithComponent("normalizer")
	for {
		select {
		case <-n.ctx.Done():
			return
		case msg, ok := <-n.channels.Raw:
			if !ok {
				return
			}
			rec, err := ParseMessage(msg.Data)
			if err != nil {
				log.WithError(err).Warn("dropping undecodable message")
				continue
			}
			if !n.channels.SendRecord(rec) {
				log.Warn("record channel full, dropping record")
				continue
			}
			if rec.Kind == models.FeedBook {
				logger.LogDataFlowEntry(log, "feed_ws", "recorder", len(rec.Bids)+len(rec.Asks), "book_levels")
			}
		}
	}
}
