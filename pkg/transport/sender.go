package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"ktrace/internal/constants"
	apperrors "ktrace/pkg/errors"
	"ktrace/pkg/tracing"
)

// Sender performs one delivery attempt of an encoded batch.
type Sender interface {
	Send(ctx context.Context, url string, body []byte, headers map[string]string) error
}

// Beacon performs a single best-effort delivery with no retry. It is used at
// teardown and while offline.
type Beacon interface {
	Beacon(ctx context.Context, url string, body []byte, headers map[string]string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, url string, body []byte, headers map[string]string) error

func (f SenderFunc) Send(ctx context.Context, url string, body []byte, headers map[string]string) error {
	return f(ctx, url, body, headers)
}

// BeaconFunc adapts a function to Beacon.
type BeaconFunc func(ctx context.Context, url string, body []byte, headers map[string]string) error

func (f BeaconFunc) Beacon(ctx context.Context, url string, body []byte, headers map[string]string) error {
	return f(ctx, url, body, headers)
}

// HTTPSender POSTs the batch and classifies the outcome: 2xx succeeds,
// anything else (network error, timeout, non-2xx) is retryable.
type HTTPSender struct {
	client *http.Client
}

func NewHTTPSender(client *http.Client) *HTTPSender {
	if client == nil {
		client = tracing.HTTPClient(0)
	}
	return &HTTPSender{client: client}
}

func (s *HTTPSender) Send(ctx context.Context, url string, body []byte, headers map[string]string) error {
	return post(ctx, s.client, url, body, headers)
}

// HTTPBeacon is a Beacon backed by a single short POST.
type HTTPBeacon struct {
	client *http.Client
}

func NewHTTPBeacon(client *http.Client) *HTTPBeacon {
	if client == nil {
		client = tracing.HTTPClient(constants.BeaconTimeout)
	}
	return &HTTPBeacon{client: client}
}

func (b *HTTPBeacon) Beacon(ctx context.Context, url string, body []byte, headers map[string]string) error {
	return post(ctx, b.client, url, body, headers)
}

func post(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return apperrors.ErrValidation.WithCause(err).AsFatal()
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return apperrors.ErrTimeout.WithCause(err).AsRetryable()
		}
		return apperrors.ErrServiceUnavailable.WithCause(err).AsRetryable()
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return apperrors.ErrDeliveryFailed.
			WithDetail("status", resp.StatusCode).
			WithCause(fmt.Errorf("collector responded %s", resp.Status)).
			AsRetryable()
	}
	return nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
