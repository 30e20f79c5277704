// Package fetcher downloads boundary and dataset files and reads the tabular
// formats region datasets arrive in (CSV, XLSX) plus zipped shapefiles.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
