// Package fetch is the outbound HTTP layer: a retrying client plus loaders
// for world geometry and TLE catalogs.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/signalsfoundry/satmap/internal/logging"
	"github.com/signalsfoundry/satmap/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

// ErrStatus is wrapped by errors for non-2xx responses.
var ErrStatus = errors.New("unexpected HTTP status")

// MaxBodyBytes caps how much of a response body is read.
const MaxBodyBytes = 64 << 20

// Options configures a Client. Zero values select defaults.
type Options struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	UserAgent    string
	Logger       logging.Logger
	Metrics      *observability.FetchCollector
}

// Client performs GETs with retries on transport errors, 5xx and 429.
type Client struct {
	http      *retryablehttp.Client
	userAgent string
	log       logging.Logger
	metrics   *observability.FetchCollector
}

func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logging.Noop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "satmap/1"
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient.Timeout = opts.Timeout
	if opts.RetryMax > 0 {
		rc.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		rc.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		rc.RetryWaitMax = opts.RetryWaitMax
	}
	rc.Logger = leveled{opts.Logger}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		http:      rc,
		userAgent: opts.UserAgent,
		log:       opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Get fetches url and returns the body. source labels metrics and spans.
func (c *Client) Get(ctx context.Context, source, url string) (body []byte, err error) {
	ctx, span := observability.StartSpan(ctx, "fetch."+source, attribute.String("http.url", redact(url)))
	start := time.Now()
	defer func() {
		c.metrics.ObserveFetch(source, time.Since(start), err)
		observability.EndSpan(span, err)
	}()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if resp != nil {
		// Exhausted retries hand back the last response alongside the
		// policy error; report it by status.
		defer resp.Body.Close()
	} else if err != nil {
		var uerr *neturl.Error
		if errors.As(err, &uerr) {
			uerr.URL = redact(uerr.URL)
		}
		return nil, fmt.Errorf("get %s: %w", redact(url), err)
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("get %s: %w: %s", redact(url), ErrStatus, resp.Status)
	}
	body, err = io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", redact(url), err)
	}
	return body, nil
}

// GetJSON fetches url and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, source, url string, v any) error {
	body, err := c.Get(ctx, source, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s response: %w", source, err)
	}
	return nil
}

// leveled adapts logging.Logger to retryablehttp.LeveledLogger. Retry
// chatter is logged at debug level.
type leveled struct{ log logging.Logger }

func (l leveled) Error(msg string, kv ...interface{}) {
	l.log.Warn(context.Background(), "http: "+msg, fields(kv)...)
}
func (l leveled) Info(msg string, kv ...interface{}) {
	l.log.Debug(context.Background(), "http: "+msg, fields(kv)...)
}
func (l leveled) Debug(msg string, kv ...interface{}) {
	l.log.Debug(context.Background(), "http: "+msg, fields(kv)...)
}
func (l leveled) Warn(msg string, kv ...interface{}) {
	l.log.Warn(context.Background(), "http: "+msg, fields(kv)...)
}

func fields(kv []interface{}) []logging.Field {
	out := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		val := kv[i+1]
		if key == "url" {
			val = redact(fmt.Sprint(val))
		}
		out = append(out, logging.Any(key, val))
	}
	return out
}
