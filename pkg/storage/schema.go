package storage

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Key prefixes for different data types
const (
	prefixContract       = "/data/contract/"
	prefixIdxContractBlk = "/index/contract/block/"
	prefixCoverage       = "/meta/coverage/"
	prefixGap            = "/meta/gap/"
	prefixHead           = "/meta/head/"
)

// ContractKey returns the key for a contract record
// Format: /data/contract/{chainID}/{id}
func ContractKey(chainID, id string) []byte {
	return []byte(prefixContract + chainID + "/" + strings.ToLower(id))
}

// ContractBlockIndexKey returns the block index key for a contract
// Format: /index/contract/block/{chainID}/{block:020d}/{id}
func ContractBlockIndexKey(chainID string, block uint64, id string) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/%s", prefixIdxContractBlk, chainID, block, strings.ToLower(id)))
}

// ContractBlockIndexPrefix returns the block index prefix for a chain
func ContractBlockIndexPrefix(chainID string) []byte {
	return []byte(prefixIdxContractBlk + chainID + "/")
}

// ContractBlockIndexBound returns the index key that sorts before every id at block
func ContractBlockIndexBound(chainID string, block uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d/", prefixIdxContractBlk, chainID, block))
}

// ParseContractBlockIndexKey extracts block and id from a block index key
func ParseContractBlockIndexKey(key []byte) (block uint64, id string, err error) {
	s := strings.TrimPrefix(string(key), prefixIdxContractBlk)
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidData, key)
	}
	block, err = strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidData, key)
	}
	return block, parts[2], nil
}

// CoverageKey returns the key of a scanned window
// Format: /meta/coverage/{chainID}/{from:020d}
func CoverageKey(chainID string, from uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", prefixCoverage, chainID, from))
}

// CoveragePrefix returns the coverage prefix for a chain
func CoveragePrefix(chainID string) []byte {
	return []byte(prefixCoverage + chainID + "/")
}

// GapKey returns the key of a detected gap
// Format: /meta/gap/{chainID}/{from:020d}
func GapKey(chainID string, from uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", prefixGap, chainID, from))
}

// GapPrefix returns the gap prefix for a chain
func GapPrefix(chainID string) []byte {
	return []byte(prefixGap + chainID + "/")
}

// HeadKey returns the key of the last block handled by the live handler
func HeadKey(chainID string) []byte {
	return []byte(prefixHead + chainID)
}

// EncodeUint64 encodes a uint64 to bytes (big-endian)
func EncodeUint64(n uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, n)
	return buf
}

// DecodeUint64 decodes bytes to uint64 (big-endian)
func DecodeUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: expected 8 bytes, got %d", ErrInvalidData, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// prefixUpperBound returns the smallest key greater than every key with prefix
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
