package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/AdguardTeam/golibs/errors"

	"github.com/haukened/rr-filter/internal/filter/common/log"
)

const (
	// DefaultTimeout bounds a whole list download.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBytes caps a list body at 50 MiB.
	DefaultMaxBytes int64 = 50 << 20
	// DefaultUserAgent identifies list downloads.
	DefaultUserAgent = "rr-filter/1 (+filter list updater)"
)

const (
	// ErrBadStatus is returned for non-2xx responses other than 304.
	ErrBadStatus errors.Error = "unexpected http status"
	// ErrTooLarge is returned when the body exceeds the size limit.
	ErrTooLarge errors.Error = "response body exceeds size limit"
)

// Request describes one conditional download.
type Request struct {
	URL          string
	ETag         string
	LastModified string
}

// Result is the outcome of a successful download. When NotModified is set the
// body is empty and the caller keeps its current copy.
type Result struct {
	Body         []byte
	NotModified  bool
	ETag         string
	LastModified string
	StatusCode   int
}

// Options configures a Fetcher. Zero values select defaults.
type Options struct {
	Client    *http.Client
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Logger    log.Logger
}

// Fetcher downloads filter lists over HTTP(S).
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
	logger    log.Logger
}

// New constructs a Fetcher.
func New(opts Options) *Fetcher {
	f := &Fetcher{
		client:    opts.Client,
		timeout:   opts.Timeout,
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
	}
	if f.timeout <= 0 {
		f.timeout = DefaultTimeout
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: f.timeout}
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxBytes
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.logger == nil {
		f.logger = log.NewNoopLogger()
	}
	return f
}

// Fetch performs a conditional GET. Validators from req are sent as
// If-None-Match and If-Modified-Since. Timeouts surface as ordinary errors.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (res Result, err error) {
	defer func() { err = errors.Annotate(err, "fetching %s: %w", req.URL) }()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Result{}, err
	}
	hreq.Header.Set("User-Agent", f.userAgent)
	if req.ETag != "" {
		hreq.Header.Set("If-None-Match", req.ETag)
	}
	if req.LastModified != "" {
		hreq.Header.Set("If-Modified-Since", req.LastModified)
	}

	start := time.Now()
	resp, err := f.client.Do(hreq)
	if err != nil {
		return Result{}, err
	}
	defer func() { err = errors.WithDeferred(err, resp.Body.Close()) }()

	res = Result{
		StatusCode:   resp.StatusCode,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}

	switch {
	case resp.StatusCode == http.StatusNotModified:
		res.NotModified = true
		if res.ETag == "" {
			res.ETag = req.ETag
		}
		if res.LastModified == "" {
			res.LastModified = req.LastModified
		}
		f.logger.Debug(map[string]any{"url": req.URL}, "fetch_not_modified")
		return res, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Result{StatusCode: resp.StatusCode}, fmt.Errorf("%w: %s", ErrBadStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Result{}, err
	}
	if int64(len(body)) > f.maxBytes {
		return Result{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	res.Body = body

	f.logger.Debug(map[string]any{
		"url":      req.URL,
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"duration": time.Since(start).String(),
	}, "fetch_done")
	return res, nil
}
