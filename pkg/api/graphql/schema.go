package graphql

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/0xmhha/creation-indexer/internal/constants"
	"github.com/0xmhha/creation-indexer/pkg/scan"
	"github.com/0xmhha/creation-indexer/pkg/storage"
	"github.com/0xmhha/creation-indexer/pkg/types"
)

// Schema holds the GraphQL schema
type Schema struct {
	schema  graphql.Schema
	storage storage.Storage
	logger  *zap.Logger
}

// NewSchema builds the query schema over store
func NewSchema(store storage.Storage, logger *zap.Logger) (*Schema, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Schema{storage: store, logger: logger}

	chainArg := &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)}

	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"contract": &graphql.Field{
				Type: contractType,
				Args: graphql.FieldConfigArgument{
					"chainId": chainArg,
					"id":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: s.resolveContract,
			},
			"contractsByBlockRange": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(contractType))),
				Description: "Contracts created in [from, to), ordered by block number",
				Args: graphql.FieldConfigArgument{
					"chainId": chainArg,
					"from":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(bigIntType)},
					"to":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(bigIntType)},
					"limit": &graphql.ArgumentConfig{
						Type:         graphql.Int,
						DefaultValue: constants.DefaultPaginationLimit,
					},
				},
				Resolve: s.resolveContractsByBlockRange,
			},
			"coverage": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(blockRangeType))),
				Args:    graphql.FieldConfigArgument{"chainId": chainArg},
				Resolve: s.resolveCoverage,
			},
			"gaps": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(blockRangeType))),
				Description: "Ranges between the historical and live handlers that were never scanned",
				Args:        graphql.FieldConfigArgument{"chainId": chainArg},
				Resolve:     s.resolveGaps,
			},
			"head": &graphql.Field{
				Type:    bigIntType,
				Args:    graphql.FieldConfigArgument{"chainId": chainArg},
				Resolve: s.resolveHead,
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: query})
	if err != nil {
		return nil, fmt.Errorf("failed to build schema: %w", err)
	}
	s.schema = schema
	return s, nil
}

func (s *Schema) resolveContract(p graphql.ResolveParams) (interface{}, error) {
	chainID, _ := p.Args["chainId"].(string)
	id, _ := p.Args["id"].(string)

	c, err := s.storage.GetContract(p.Context, chainID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("failed to get contract",
			zap.String("chain", chainID),
			zap.String("id", id),
			zap.Error(err))
		return nil, err
	}
	return contractToMap(c), nil
}

func (s *Schema) resolveContractsByBlockRange(p graphql.ResolveParams) (interface{}, error) {
	chainID, _ := p.Args["chainId"].(string)

	from, err := parseBigInt(p.Args["from"])
	if err != nil {
		return nil, fmt.Errorf("invalid from: %w", err)
	}
	to, err := parseBigInt(p.Args["to"])
	if err != nil {
		return nil, fmt.Errorf("invalid to: %w", err)
	}

	limit, _ := p.Args["limit"].(int)
	if limit <= 0 || limit > constants.DefaultMaxPaginationLimit {
		limit = constants.DefaultMaxPaginationLimit
	}

	contracts, err := s.storage.GetContractsByBlockRange(p.Context, chainID, scan.BlockRange{From: from, To: to}, limit)
	if err != nil {
		s.logger.Error("failed to get contracts by block range",
			zap.String("chain", chainID),
			zap.Uint64("from", from),
			zap.Uint64("to", to),
			zap.Error(err))
		return nil, err
	}

	out := make([]interface{}, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, contractToMap(c))
	}
	return out, nil
}

func (s *Schema) resolveCoverage(p graphql.ResolveParams) (interface{}, error) {
	chainID, _ := p.Args["chainId"].(string)
	ranges, err := s.storage.GetCoverage(p.Context, chainID)
	if err != nil {
		return nil, err
	}
	return rangesToList(ranges), nil
}

func (s *Schema) resolveGaps(p graphql.ResolveParams) (interface{}, error) {
	chainID, _ := p.Args["chainId"].(string)
	ranges, err := s.storage.GetGaps(p.Context, chainID)
	if err != nil {
		return nil, err
	}
	return rangesToList(ranges), nil
}

func (s *Schema) resolveHead(p graphql.ResolveParams) (interface{}, error) {
	chainID, _ := p.Args["chainId"].(string)
	head, err := s.storage.GetHead(p.Context, chainID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return head, nil
}

func parseBigInt(v interface{}) (uint64, error) {
	str, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("expected BigInt, got %T", v)
	}
	return strconv.ParseUint(str, 10, 64)
}

func contractToMap(c *types.EnrichedDiscovery) map[string]interface{} {
	return map[string]interface{}{
		"id":          c.ID,
		"chainId":     c.ChainID,
		"blockNumber": c.BlockNumber,
		"blockTime":   c.BlockTime,
		"timestamp":   c.Time().Format(time.RFC3339),
	}
}

func rangesToList(ranges []scan.BlockRange) []interface{} {
	out := make([]interface{}, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, map[string]interface{}{"from": r.From, "to": r.To})
	}
	return out
}
