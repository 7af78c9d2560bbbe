package graphql

import (
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// bigIntType carries uint64 block numbers and timestamps as decimal strings
var bigIntType = graphql.NewScalar(graphql.ScalarConfig{
	Name:        "BigInt",
	Description: "Unsigned 64-bit integer encoded as a decimal string",
	Serialize: func(value interface{}) interface{} {
		switch v := value.(type) {
		case uint64:
			return strconv.FormatUint(v, 10)
		case string:
			return v
		}
		return nil
	},
	ParseValue: func(value interface{}) interface{} {
		switch v := value.(type) {
		case string:
			return v
		case int:
			if v < 0 {
				return nil
			}
			return strconv.Itoa(v)
		case float64:
			if v < 0 {
				return nil
			}
			return strconv.FormatUint(uint64(v), 10)
		}
		return nil
	},
	ParseLiteral: func(valueAST ast.Value) interface{} {
		switch v := valueAST.(type) {
		case *ast.StringValue:
			return v.Value
		case *ast.IntValue:
			return v.Value
		}
		return nil
	},
})

var contractType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "Contract",
	Description: "A contract creation annotated with its block timestamp",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"chainId":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"blockNumber": &graphql.Field{Type: graphql.NewNonNull(bigIntType)},
		"blockTime":   &graphql.Field{Type: graphql.NewNonNull(bigIntType)},
		"timestamp":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var blockRangeType = graphql.NewObject(graphql.ObjectConfig{
	Name:        "BlockRange",
	Description: "Half-open block range [from, to)",
	Fields: graphql.Fields{
		"from": &graphql.Field{Type: graphql.NewNonNull(bigIntType)},
		"to":   &graphql.Field{Type: graphql.NewNonNull(bigIntType)},
	},
})
