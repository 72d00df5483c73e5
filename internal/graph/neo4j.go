package graph

import (
	"context"
	"errors"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type neo4jDriver struct {
	driver   neo4j.DriverWithContext
	database string
}

// connectNeo4j dials a bolt endpoint, retrying until the server answers or
// the attempts run out.
func connectNeo4j(ctx context.Context, cfg Config) (Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt < cfg.RetryAttempts; attempt++ {
		if lastErr = driver.VerifyConnectivity(ctx); lastErr == nil {
			return &neo4jDriver{driver: driver, database: cfg.Database}, nil
		}

		select {
		case <-ctx.Done():
			_ = driver.Close(context.Background())
			return nil, errors.Join(ErrConnectionFailed, ctx.Err())
		default:
			time.Sleep(cfg.RetryInterval)
		}
	}

	_ = driver.Close(context.Background())
	return nil, errors.Join(ErrConnectionFailed, lastErr)
}

func (d *neo4jDriver) Provider() Provider {
	return ProviderNeo4j
}

func (d *neo4jDriver) Query(ctx context.Context, cypher string, params map[string]any) ([]Record, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(d.database))
	if err != nil {
		return nil, errors.Join(ErrQueryFailed, err)
	}

	records := make([]Record, len(result.Records))
	for i, rec := range result.Records {
		records[i] = Record(rec.AsMap())
	}
	return records, nil
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}
