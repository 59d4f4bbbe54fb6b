package bigquery

import (
	"context"
	"errors"
	"net"

	"google.golang.org/api/googleapi"

	"github.com/dwsmith1983/stratum/pkg/types"
)

// classify maps raw BigQuery client errors onto the closed failure taxonomy.
// Auth and request-shape errors are fatal; server-side and transport errors
// are transient. Already-classified errors pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var f *types.Failure
	if errors.As(err, &f) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case 400, 401, 403, 404:
			// Bad query, bad credentials, missing table: retrying unchanged
			// cannot succeed.
			return types.Fatal(err)
		case 429, 500, 502, 503, 504:
			return types.Transient(err)
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return types.Transient(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.Transient(err)
	}

	return types.Transient(err)
}
