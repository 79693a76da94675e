package transport

import (
	"strings"
	"time"

	"ktrace/internal/constants"
)

type Options struct {
	ServerURL      string
	MaxBatchSize   int
	FlushInterval  time.Duration
	RetryTimes     int
	RetryBaseDelay time.Duration
	RequestTimeout time.Duration
	Headers        map[string]string
	UseBeacon      bool
}

func DefaultOptions() Options {
	return Options{
		MaxBatchSize:   constants.DefaultMaxBatchSize,
		FlushInterval:  constants.DefaultFlushInterval,
		RetryTimes:     constants.DefaultRetryTimes,
		RetryBaseDelay: constants.DefaultRetryBaseDelay,
		RequestTimeout: constants.DefaultRequestTimeout,
		UseBeacon:      true,
	}
}

// withDefaults fills unset numeric fields and always sets the JSON content type.
func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = def.MaxBatchSize
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = def.FlushInterval
	}
	if o.RetryTimes < 0 {
		o.RetryTimes = 0
	}
	if o.RetryBaseDelay < 0 {
		o.RetryBaseDelay = 0
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = def.RequestTimeout
	}

	headers := make(map[string]string, len(o.Headers)+1)
	for k, v := range o.Headers {
		headers[k] = v
	}
	headers["Content-Type"] = "application/json"
	o.Headers = headers
	return o
}

// NormalizeURL guarantees a trailing slash so paths can be appended.
func NormalizeURL(url string) string {
	if url == "" || strings.HasSuffix(url, "/") {
		return url
	}
	return url + "/"
}

// Endpoint is the collect URL for a server base URL.
func Endpoint(serverURL string) string {
	return NormalizeURL(serverURL) + constants.CollectPath
}
