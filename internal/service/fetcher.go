package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var errTooLarge = errors.New("response body exceeds size limit")

// Fetcher downloads image bytes from an external link.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewFetcher(timeout time.Duration, maxBytes int64) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

type fetched struct {
	data        []byte
	contentType string
}

// Fetch returns an *UpstreamFetchError for any transfer failure or non-2xx
// response; no partial body is ever returned.
func (f *Fetcher) Fetch(ctx context.Context, link string) (fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fetched{}, &UpstreamFetchError{URL: link, Err: err}
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return fetched{}, &UpstreamFetchError{URL: link, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return fetched{}, &UpstreamFetchError{URL: link, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return fetched{}, &UpstreamFetchError{URL: link, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > f.maxBytes {
		return fetched{}, &UpstreamFetchError{URL: link, Err: errTooLarge}
	}
	if len(data) == 0 {
		return fetched{}, &UpstreamFetchError{URL: link, Err: errors.New("empty body")}
	}

	return fetched{data: data, contentType: resp.Header.Get("Content-Type")}, nil
}
