package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/engram/pkg/embeddings"
)

// falkorDriver speaks the RedisGraph protocol FalkorDB inherited. Queries go
// through GRAPH.QUERY in compact mode; parameters are inlined via the CYPHER
// prefix because the protocol has no separate parameter channel.
type falkorDriver struct {
	client *redis.Client
	graph  string
}

// connectFalkor establishes a connection following the usual retry dance:
// dial, ping, back off, try again.
func connectFalkor(ctx context.Context, cfg Config) (Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opts := &redis.Options{
		Addr:     cfg.FalkorAddr,
		Password: cfg.FalkorPassword,
	}

	for attempt := 0; attempt < cfg.RetryAttempts; attempt++ {
		client := redis.NewClient(opts)

		if err := client.Ping(ctx).Err(); err == nil {
			return &falkorDriver{client: client, graph: cfg.FalkorGraph}, nil
		}

		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnectionFailed, ctx.Err())
		default:
			time.Sleep(cfg.RetryInterval)
		}
	}

	return nil, ErrConnectionFailed
}

func (d *falkorDriver) Provider() Provider {
	return ProviderFalkorDB
}

func (d *falkorDriver) Query(ctx context.Context, cypher string, params map[string]any) ([]Record, error) {
	full, err := buildFalkorQuery(cypher, params)
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}

	reply, err := d.client.Do(ctx, "GRAPH.QUERY", d.graph, full, "--compact").Result()
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}

	return parseCompactReply(reply)
}

func (d *falkorDriver) Close(ctx context.Context) error {
	return d.client.Close()
}

// buildFalkorQuery inlines parameters as a CYPHER prefix, the protocol's
// parameterization mechanism. Keys are emitted in sorted order so the same
// call always produces the same query text.
func buildFalkorQuery(cypher string, params map[string]any) (string, error) {
	if len(params) == 0 {
		return cypher, nil
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("CYPHER ")
	for _, k := range keys {
		enc, err := encodeParam(params[k])
		if err != nil {
			return "", fmt.Errorf("param %q: %w", k, err)
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(enc)
		b.WriteByte(' ')
	}
	b.WriteString(cypher)
	return b.String(), nil
}

// encodeParam renders a parameter value as a Cypher literal.
func encodeParam(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case string:
		return strconv.Quote(x), nil
	case bool:
		return strconv.FormatBool(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case time.Time:
		return strconv.Quote(x.UTC().Format(time.RFC3339Nano)), nil
	case embeddings.Vector:
		return encodeFloatSlice(x), nil
	case []float64:
		return encodeFloatSlice(x), nil
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			enc, err := encodeParam(e)
			if err != nil {
				return "", err
			}
			parts[i] = enc
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			enc, err := encodeParam(x[k])
			if err != nil {
				return "", err
			}
			parts[i] = "`" + strings.ReplaceAll(k, "`", "") + "`: " + enc
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", fmt.Errorf("unsupported parameter type %T", v)
	}
}

func encodeFloatSlice(x []float64) string {
	parts := make([]string, len(x))
	for i, f := range x {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Compact protocol value type tags.
const (
	falkorValueNull    = 1
	falkorValueString  = 2
	falkorValueInteger = 3
	falkorValueBoolean = 4
	falkorValueDouble  = 5
	falkorValueArray   = 6
	falkorValueMap     = 10
)

// parseCompactReply decodes a compact-mode GRAPH.QUERY reply into records.
// The reply is [header, rows, stats] for reading queries and a bare stats
// array for write-only ones.
func parseCompactReply(reply any) ([]Record, error) {
	top, ok := reply.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrInvalidReply, reply)
	}
	if len(top) < 3 {
		return nil, nil
	}

	rawHeader, ok := top[0].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: header is %T", ErrInvalidReply, top[0])
	}
	names := make([]string, len(rawHeader))
	for i, h := range rawHeader {
		col, ok := h.([]any)
		if !ok || len(col) < 2 {
			return nil, fmt.Errorf("%w: malformed header column", ErrInvalidReply)
		}
		name, ok := col[1].(string)
		if !ok {
			return nil, fmt.Errorf("%w: column name is %T", ErrInvalidReply, col[1])
		}
		names[i] = name
	}

	rawRows, ok := top[1].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: rows are %T", ErrInvalidReply, top[1])
	}

	records := make([]Record, 0, len(rawRows))
	for _, rawRow := range rawRows {
		cells, ok := rawRow.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: row is %T", ErrInvalidReply, rawRow)
		}
		rec := make(Record, len(names))
		for i, cell := range cells {
			if i >= len(names) {
				break
			}
			value, err := parseCompactValue(cell)
			if err != nil {
				return nil, err
			}
			rec[names[i]] = value
		}
		records = append(records, rec)
	}
	return records, nil
}

// parseCompactValue decodes one [type, value] pair. Only scalar shapes are
// supported: queries must return aliased values, never raw nodes or edges.
func parseCompactValue(v any) (any, error) {
	pair, ok := v.([]any)
	if !ok || len(pair) != 2 {
		return nil, fmt.Errorf("%w: value cell is %T", ErrInvalidReply, v)
	}
	typ, ok := asInt64(pair[0])
	if !ok {
		return nil, fmt.Errorf("%w: value tag is %T", ErrInvalidReply, pair[0])
	}

	switch typ {
	case falkorValueNull:
		return nil, nil
	case falkorValueString:
		s, ok := pair[1].(string)
		if !ok {
			return nil, fmt.Errorf("%w: string cell is %T", ErrInvalidReply, pair[1])
		}
		return s, nil
	case falkorValueInteger:
		n, ok := asInt64(pair[1])
		if !ok {
			return nil, fmt.Errorf("%w: integer cell is %T", ErrInvalidReply, pair[1])
		}
		return n, nil
	case falkorValueBoolean:
		s, ok := pair[1].(string)
		if !ok {
			return nil, fmt.Errorf("%w: boolean cell is %T", ErrInvalidReply, pair[1])
		}
		return strconv.ParseBool(s)
	case falkorValueDouble:
		s, ok := pair[1].(string)
		if !ok {
			return nil, fmt.Errorf("%w: double cell is %T", ErrInvalidReply, pair[1])
		}
		return strconv.ParseFloat(s, 64)
	case falkorValueArray:
		elems, ok := pair[1].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: array cell is %T", ErrInvalidReply, pair[1])
		}
		out := make([]any, len(elems))
		for i, e := range elems {
			parsed, err := parseCompactValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = parsed
		}
		return out, nil
	case falkorValueMap:
		// Maps arrive as a flat array of raw string keys alternating with
		// typed values.
		elems, ok := pair[1].([]any)
		if !ok || len(elems)%2 != 0 {
			return nil, fmt.Errorf("%w: map cell is %T", ErrInvalidReply, pair[1])
		}
		out := make(map[string]any, len(elems)/2)
		for i := 0; i < len(elems); i += 2 {
			key, ok := elems[i].(string)
			if !ok {
				return nil, fmt.Errorf("%w: map key is %T", ErrInvalidReply, elems[i])
			}
			value, err := parseCompactValue(elems[i+1])
			if err != nil {
				return nil, err
			}
			out[key] = value
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: value type %d", ErrInvalidReply, typ)
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
