package scan

// Field names understood by the remote source's field selection.
const (
	FieldBlockNumber     = "block_number"
	FieldAddress         = "address"
	FieldContractAddress = "contract_address"
	FieldNumber          = "number"
	FieldTimestamp       = "timestamp"

	// TraceTypeCreate selects traces of contract deployments.
	TraceTypeCreate = "create"
)

// TraceSelection filters trace rows.
type TraceSelection struct {
	Type []string `json:"type,omitempty"`
}

// FieldSelection lists the columns the source should return per table.
type FieldSelection struct {
	Block       []string `json:"block,omitempty"`
	Transaction []string `json:"transaction,omitempty"`
	Trace       []string `json:"trace,omitempty"`
}

// Query is one ranged request against the remote source. ToBlock is
// exclusive.
type Query struct {
	FromBlock        uint64
	ToBlock          uint64
	Traces           []TraceSelection
	IncludeAllBlocks bool
	Fields           FieldSelection
}

// WithRange returns a copy of q scoped to [from, to).
func (q Query) WithRange(from, to uint64) Query {
	q.FromBlock = from
	q.ToBlock = to
	return q
}

// CreationQuery selects create traces together with the transaction and
// trace columns the extractor reads.
func CreationQuery() Query {
	return Query{
		Traces: []TraceSelection{{Type: []string{TraceTypeCreate}}},
		Fields: FieldSelection{
			Transaction: []string{FieldBlockNumber, FieldContractAddress},
			Trace:       []string{FieldBlockNumber, FieldAddress},
		},
	}
}

// BlockListingQuery lists every block in range with its number and timestamp.
func BlockListingQuery() Query {
	return Query{
		IncludeAllBlocks: true,
		Fields: FieldSelection{
			Block: []string{FieldNumber, FieldTimestamp},
		},
	}
}
