// Package channel wires the capture pipeline together: buffered typed
// channels between the feed and the recorder, with sent/drop statistics.
package channel

import (
	"context"
	"sync"
	"time"

	"github.com/saleyn/sdb/logger"
	"github.com/saleyn/sdb/models"
)

type Stats struct {
	RawSent        int64
	RawDropped     int64
	RecordsSent    int64
	RecordsDropped int64
}

type Channels struct {
	Raw     chan models.RawFeedMessage
	Records chan models.FeedRecord

	stats      Stats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewChannels(rawBufferSize, recordBufferSize int) *Channels {
	log := logger.GetLogger()

	c := &Channels{
		Raw:     make(chan models.RawFeedMessage, rawBufferSize),
		Records: make(chan models.FeedRecord, recordBufferSize),
		log:     log,
	}

	log.WithComponent("channels").WithFields(logger.Fields{
		"raw_buffer_size":    rawBufferSize,
		"record_buffer_size": recordBufferSize,
	}).Info("channels initialized")

	return c
}

// SendRaw offers a raw feed message without blocking; full buffers drop the
// message and account it.
func (c *Channels) SendRaw(msg models.RawFeedMessage) bool {
	select {
	case c.Raw <- msg:
		c.add(func(s *Stats) { s.RawSent++ })
		logger.RecordChannelMessage("feed_raw", len(msg.Data))
		return true
	default:
		c.add(func(s *Stats) { s.RawDropped++ })
		return false
	}
}

// SendRecord offers a normalized record without blocking.
func (c *Channels) SendRecord(rec models.FeedRecord) bool {
	select {
	case c.Records <- rec:
		c.add(func(s *Stats) { s.RecordsSent++ })
		return true
	default:
		c.add(func(s *Stats) { s.RecordsDropped++ })
		return false
	}
}

func (c *Channels) add(fn func(*Stats)) {
	c.statsMutex.Lock()
	fn(&c.stats)
	c.statsMutex.Unlock()
}

// Stats returns a snapshot of the channel counters.
func (c *Channels) Stats() Stats {
	c.statsMutex.RLock()
	defer c.statsMutex.RUnlock()
	return c.stats
}

// StartMetricsReporting periodically logs channel occupancy and counters
// until ctx is cancelled.
func (c *Channels) StartMetricsReporting(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)

	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				stats := c.Stats()
				c.log.WithComponent("channels").WithFields(logger.Fields{
					"raw_sent":        stats.RawSent,
					"raw_dropped":     stats.RawDropped,
					"records_sent":    stats.RecordsSent,
					"records_dropped": stats.RecordsDropped,
					"raw_len":         len(c.Raw),
					"records_len":     len(c.Records),
				}).Info("channel metrics")
			}
		}
	}()
}

// Close closes both channels; senders must have stopped.
func (c *Channels) Close() {
	close(c.Raw)
	close(c.Records)
}
