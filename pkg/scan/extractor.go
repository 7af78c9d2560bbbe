package scan

// Extract turns one page into discoveries. Trace rows need an address and a
// block number; transaction rows need a contract address and a block number.
// Rows missing either are dropped. Output follows record order.
func Extract(p *Page) []Discovery {
	if p == nil {
		return nil
	}
	out := make([]Discovery, 0, len(p.Records))
	for _, rec := range p.Records {
		if d, ok := extractRecord(rec); ok {
			out = append(out, d)
		}
	}
	return out
}

// ExtractAll concatenates Extract over pages in order.
func ExtractAll(pages []*Page) []Discovery {
	var out []Discovery
	for _, p := range pages {
		out = append(out, Extract(p)...)
	}
	return out
}

func extractRecord(rec RawRecord) (Discovery, bool) {
	switch r := rec.(type) {
	case TraceRecord:
		return discovery(r.Address, r.BlockNumber)
	case *TraceRecord:
		if r == nil {
			return Discovery{}, false
		}
		return discovery(r.Address, r.BlockNumber)
	case TransactionRecord:
		return discovery(r.ContractAddress, r.BlockNumber)
	case *TransactionRecord:
		if r == nil {
			return Discovery{}, false
		}
		return discovery(r.ContractAddress, r.BlockNumber)
	default:
		return Discovery{}, false
	}
}

func discovery(addr *string, block *uint64) (Discovery, bool) {
	if addr == nil || *addr == "" || block == nil {
		return Discovery{}, false
	}
	return Discovery{ID: *addr, BlockNumber: *block}, true
}
