package models

// PriceT is the canonical on-disk price representation: a signed count of
// price steps (see Header.PxStep).
type PriceT int32

// Version is the SDB format version understood by this codec.
const Version = 1

// BeginStreamData marks the beginning of the stream data section.
const BeginStreamData uint32 = 0xABBABABA

// MinFileSize is the minimum byte length of a valid SDB file header.
const MinFileSize = 165

// MaxDepthLimit is the hard cap on per-side book depth dictated by the
// nibble encoding of bid/ask counts in quote records.
const MaxDepthLimit = 15

// StreamType identifies the kind of a record in the data section. The low
// 7 bits of every record's stream header byte carry this value; the high
// bit is the delta flag.
type StreamType byte

const (
	StreamSeconds StreamType = iota // mandatory stream
	StreamQuotes
	StreamTrade
	StreamOrder   // reserved, body not implemented
	StreamSummary // reserved, body not implemented
	StreamMessage // reserved, body not implemented
	streamInvalid
)

// Valid reports whether t is one of the enumerated stream types.
func (t StreamType) Valid() bool { return t < streamInvalid }

// Implemented reports whether records of this type can appear in the data
// section. Order, Summary and Message are reserved tags only.
func (t StreamType) Implemented() bool {
	return t == StreamSeconds || t == StreamQuotes || t == StreamTrade
}

func (t StreamType) String() string {
	switch t {
	case StreamSeconds:
		return "Seconds"
	case StreamQuotes:
		return "Quotes"
	case StreamTrade:
		return "Trade"
	case StreamOrder:
		return "Order"
	case StreamSummary:
		return "Summary"
	case StreamMessage:
		return "Message"
	}
	return "INVALID"
}

// CompressT is the compression declared in StreamsMeta. Only CompressNone
// is ever produced; the gzip value is reserved.
type CompressT byte

const (
	CompressNone CompressT = iota
	CompressGZip
)

// Side of a trade.
type Side byte

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Sell {
		return "S"
	}
	return "B"
}

// Aggr tells whether the trade initiator was the aggressor.
type Aggr byte

const (
	AggrUndefined Aggr = iota
	Aggressor
	Passive
)

func (a Aggr) String() string {
	switch a {
	case Aggressor:
		return "Aggr"
	case Passive:
		return "Pass"
	}
	return "Undef"
}

// PriceUnit selects how prices passed to the writer are interpreted before
// normalization to price steps.
type PriceUnit int

const (
	// PxDouble is a price in floating decimal point (e.g. 0.01).
	PxDouble PriceUnit = iota
	// PxPrecision is an integer value that is divided by the price scale
	// and rounded to give price steps (e.g. scale=100, px=150 gives 2 steps).
	PxPrecision
	// PxSteps is a price already expressed in integer price steps.
	PxSteps
)

// Level is a single book level as supplied by a data source: price in the
// caller-selected unit, signed quantity.
type Level struct {
	Px  float64
	Qty int
}
