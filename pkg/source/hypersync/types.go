package hypersync

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/0xmhha/creation-indexer/pkg/scan"
)

type queryRequest struct {
	FromBlock        uint64                `json:"from_block"`
	ToBlock          *uint64               `json:"to_block,omitempty"`
	Traces           []scan.TraceSelection `json:"traces,omitempty"`
	IncludeAllBlocks bool                  `json:"include_all_blocks,omitempty"`
	FieldSelection   scan.FieldSelection   `json:"field_selection"`
}

type queryResponse struct {
	Data          []responseBatch `json:"data"`
	ArchiveHeight *quantity       `json:"archive_height"`
	NextBlock     quantity        `json:"next_block"`
}

type responseBatch struct {
	Blocks       []blockRow       `json:"blocks"`
	Transactions []transactionRow `json:"transactions"`
	Traces       []traceRow       `json:"traces"`
}

type blockRow struct {
	Number    *quantity `json:"number"`
	Timestamp *quantity `json:"timestamp"`
}

type transactionRow struct {
	BlockNumber     *quantity `json:"block_number"`
	ContractAddress *string   `json:"contract_address"`
}

type traceRow struct {
	BlockNumber *quantity `json:"block_number"`
	Address     *string   `json:"address"`
}

type heightResponse struct {
	Height quantity `json:"height"`
}

// quantity decodes either a JSON number or a 0x-prefixed hex string.
type quantity uint64

func (q *quantity) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := hexutil.DecodeUint64(s)
		if err != nil {
			return fmt.Errorf("invalid quantity %q: %w", s, err)
		}
		*q = quantity(v)
		return nil
	}
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid quantity %s: %w", string(data), err)
	}
	*q = quantity(v)
	return nil
}

func (q *quantity) ptr() *uint64 {
	if q == nil {
		return nil
	}
	v := uint64(*q)
	return &v
}

// toPage flattens the response batches: every trace first, then every
// transaction, each in batch order.
func (r *queryResponse) toPage() *scan.Page {
	page := &scan.Page{NextCursor: uint64(r.NextBlock)}
	for _, b := range r.Data {
		for _, t := range b.Traces {
			page.Records = append(page.Records, scan.TraceRecord{
				Address:     t.Address,
				BlockNumber: t.BlockNumber.ptr(),
			})
		}
	}
	for _, b := range r.Data {
		for _, tx := range b.Transactions {
			page.Records = append(page.Records, scan.TransactionRecord{
				ContractAddress: tx.ContractAddress,
				BlockNumber:     tx.BlockNumber.ptr(),
			})
		}
		for _, blk := range b.Blocks {
			page.Blocks = append(page.Blocks, scan.BlockRecord{
				Number:    blk.Number.ptr(),
				Timestamp: blk.Timestamp.ptr(),
			})
		}
	}
	return page
}
