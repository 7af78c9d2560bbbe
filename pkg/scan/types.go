package scan

import "fmt"

// BlockRange is a half-open window of block numbers [From, To).
type BlockRange struct {
	From uint64
	To   uint64
}

// Empty reports whether the range covers no blocks.
func (r BlockRange) Empty() bool {
	return r.From >= r.To
}

// Len returns the number of blocks in the range.
func (r BlockRange) Len() uint64 {
	if r.Empty() {
		return 0
	}
	return r.To - r.From
}

func (r BlockRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.From, r.To)
}

// RawRecord is a row returned by the remote source. It is implemented only by
// TraceRecord and TransactionRecord.
type RawRecord interface {
	rawRecord()
}

// TraceRecord is a trace row. Fields the source omitted are nil.
type TraceRecord struct {
	Address     *string
	BlockNumber *uint64
}

// TransactionRecord is a transaction row. Fields the source omitted are nil.
type TransactionRecord struct {
	ContractAddress *string
	BlockNumber     *uint64
}

func (TraceRecord) rawRecord()       {}
func (TransactionRecord) rawRecord() {}

// BlockRecord is a block header row returned by block-listing queries.
type BlockRecord struct {
	Number    *uint64
	Timestamp *uint64
}

// Page is the result of one remote fetch.
type Page struct {
	// Records holds trace and transaction rows in source order.
	Records []RawRecord

	// Blocks holds block rows when the query selected block fields.
	Blocks []BlockRecord

	// NextCursor is the block to resume from.
	NextCursor uint64
}

// Discovery is a contract creation found in a scanned window.
type Discovery struct {
	ID          string `json:"id"`
	BlockNumber uint64 `json:"blockNumber"`
}

// Uint64 returns a pointer to v. Useful when building records by hand.
func Uint64(v uint64) *uint64 {
	return &v
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}
