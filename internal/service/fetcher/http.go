package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
)

const (
	// keepAlive is the TCP keep-alive period of download connections.
	keepAlive = 30 * time.Second
	// responseHeaderFactor stretches the connect timeout for slow servers preparing a response.
	responseHeaderFactor = 2
)

// errDownloadInterrupted is reported when the body ends before the announced length.
var errDownloadInterrupted = errors.New("download interrupted")

// HTTPTransport downloads with the built-in HTTP client, honoring the proxy environment.
type HTTPTransport struct {
	// client performs the requests.
	client *http.Client
	// reporter draws progress.
	reporter *Reporter
}

// NewHTTPTransport creates a transport that fails fast on unreachable hosts.
// The timeout bounds dialing and the TLS handshake; waiting for response headers gets twice as long.
// The body itself is not time-limited, so large artifacts on slow links still complete.
func NewHTTPTransport(timeout time.Duration, reporter *Reporter) *HTTPTransport {
	if reporter == nil {
		reporter = NewReporter(nil, true)
	}

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: keepAlive,
	}

	return &HTTPTransport{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout * responseHeaderFactor,
				ForceAttemptHTTP2:     true,
			},
		},
		reporter: reporter,
	}
}

// Download implements Transport.
func (t *HTTPTransport) Download(ctx context.Context, sourceURL, destination string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, http.NoBody)
	if err != nil {
		return &bootstrap.DownloadError{URL: sourceURL, Err: err}
	}

	response, err := t.client.Do(req)
	if err != nil {
		return &bootstrap.DownloadError{URL: sourceURL, Err: err}
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return &bootstrap.DownloadError{URL: sourceURL, Status: response.Status}
	}

	outputFile, err := os.OpenFile(destination, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return &bootstrap.CacheWriteError{Path: destination, Err: err}
	}

	progress, finish := t.reporter.Track(response.ContentLength)

	written, err := io.Copy(io.MultiWriter(outputFile, progress), response.Body)

	finish()

	if err != nil {
		_ = outputFile.Close()

		return &bootstrap.DownloadError{URL: sourceURL, Err: err}
	}

	if err = outputFile.Close(); err != nil {
		return &bootstrap.CacheWriteError{Path: destination, Err: err}
	}

	if response.ContentLength >= 0 && written != response.ContentLength {
		return &bootstrap.DownloadError{
			URL: sourceURL,
			Err: fmt.Errorf("%w after %d of %d bytes", errDownloadInterrupted, written, response.ContentLength),
		}
	}

	return nil
}
