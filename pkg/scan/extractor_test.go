package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		records []RawRecord
		want    []Discovery
	}{
		{
			name: "keeps complete rows in order",
			records: []RawRecord{
				TraceRecord{Address: String("0xa"), BlockNumber: Uint64(1)},
				&TraceRecord{Address: String("0xb"), BlockNumber: Uint64(2)},
				TransactionRecord{ContractAddress: String("0xc"), BlockNumber: Uint64(3)},
				&TransactionRecord{ContractAddress: String("0xd"), BlockNumber: Uint64(4)},
			},
			want: []Discovery{
				{ID: "0xa", BlockNumber: 1},
				{ID: "0xb", BlockNumber: 2},
				{ID: "0xc", BlockNumber: 3},
				{ID: "0xd", BlockNumber: 4},
			},
		},
		{
			name: "drops rows missing address or block",
			records: []RawRecord{
				TraceRecord{BlockNumber: Uint64(1)},
				TraceRecord{Address: String(""), BlockNumber: Uint64(1)},
				TraceRecord{Address: String("0xa")},
				TransactionRecord{BlockNumber: Uint64(2)},
				TransactionRecord{ContractAddress: String("0xb")},
				(*TraceRecord)(nil),
				nil,
			},
			want: []Discovery{},
		},
		{
			name: "block zero is valid",
			records: []RawRecord{
				TransactionRecord{ContractAddress: String("0xgenesis"), BlockNumber: Uint64(0)},
			},
			want: []Discovery{{ID: "0xgenesis", BlockNumber: 0}},
		},
		{
			name: "duplicates are preserved",
			records: []RawRecord{
				TraceRecord{Address: String("0xa"), BlockNumber: Uint64(5)},
				TransactionRecord{ContractAddress: String("0xa"), BlockNumber: Uint64(5)},
			},
			want: []Discovery{{ID: "0xa", BlockNumber: 5}, {ID: "0xa", BlockNumber: 5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(&Page{Records: tt.records}))
		})
	}
}

func TestExtract_NilPage(t *testing.T) {
	assert.Nil(t, Extract(nil))
}

func TestExtractAll_PreservesPageOrder(t *testing.T) {
	pages := []*Page{
		{Records: []RawRecord{TraceRecord{Address: String("0x2"), BlockNumber: Uint64(20)}}},
		{Records: []RawRecord{TraceRecord{Address: String("0x1"), BlockNumber: Uint64(10)}}},
	}
	assert.Equal(t, []Discovery{
		{ID: "0x2", BlockNumber: 20},
		{ID: "0x1", BlockNumber: 10},
	}, ExtractAll(pages))
}

func TestBlockRange(t *testing.T) {
	assert.True(t, BlockRange{From: 5, To: 5}.Empty())
	assert.True(t, BlockRange{From: 6, To: 5}.Empty())
	assert.Equal(t, uint64(0), BlockRange{From: 6, To: 5}.Len())
	assert.Equal(t, uint64(200), BlockRange{From: 801, To: 1001}.Len())
	assert.Equal(t, "[801,1001)", BlockRange{From: 801, To: 1001}.String())
}
