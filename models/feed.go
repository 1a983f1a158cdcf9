package models

import "time"

// RawFeedMessage wraps one undecoded message from a live market-data feed.
type RawFeedMessage struct {
	Symbol   string
	Data     []byte
	Received time.Time
}

// FeedKind discriminates decoded feed records.
type FeedKind byte

const (
	FeedBook FeedKind = iota
	FeedTrade
)

// FeedRecord is one normalized record from a live feed, ready to be written
// to an SDB file. Prices are decimal (PxDouble unit).
type FeedRecord struct {
	Kind   FeedKind
	Symbol string
	Time   time.Time

	// Book snapshot: bids best-first descending, asks best-first ascending.
	Bids []Level
	Asks []Level

	// Trade fields.
	Px      float64
	Qty     int
	Side    Side
	Aggr    Aggr
	TradeID uint64
	OrderID uint64
}
