package masterlist

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// maxDocumentBytes bounds how much of an upstream response is read. Real
// masterlists are a few megabytes; anything near this size is broken or
// hostile.
const maxDocumentBytes = 32 << 20

type fetcher struct {
	client *http.Client
}

type fetchResult struct {
	body        []byte
	etag        string
	notModified bool
}

// fetch downloads a masterlist document. When etag is non-empty it is sent
// as If-None-Match and a 304 reports notModified instead of a body. The
// request honors the context deadline.
func (f fetcher) fetch(ctx context.Context, url, etag string) (fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fetchResult{}, fmt.Errorf("building masterlist request: %w", err)
	}
	req.Header.Set("User-Agent", "loadstone")
	req.Header.Set("Accept", "application/yaml, text/yaml;q=0.9, */*;q=0.1")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fetchResult{}, fmt.Errorf("fetching masterlist: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return fetchResult{notModified: true, etag: etag}, nil
	case resp.StatusCode != http.StatusOK:
		return fetchResult{}, fmt.Errorf("fetching masterlist: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes+1))
	if err != nil {
		return fetchResult{}, fmt.Errorf("reading masterlist response: %w", err)
	}
	if len(body) > maxDocumentBytes {
		return fetchResult{}, fmt.Errorf("masterlist response exceeds %d bytes", maxDocumentBytes)
	}

	return fetchResult{body: body, etag: resp.Header.Get("ETag")}, nil
}
