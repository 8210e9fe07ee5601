package handlers

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var cacheHintFormat = regexp.MustCompile(`^_(\d+)([smhd])$`)
var collapsedScheme = regexp.MustCompile(`^(https?):/([^/])`)

// NewProxyHandler relays requests for cross origin restricted targets.
// The path carries the target URL, optionally preceded by a cache
// lifetime hint segment: /proxy/_1d/https://maps.example.com/wms
func NewProxyHandler(logger zerolog.Logger) http.HandlerFunc {
	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		var err error
		ctx, span := tracer.Start(r.Context(), "proxy-request")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		_, _, log := o11y.AddTraceIDToLoggerAndStoreInContext(span, logger, ctx)

		target := strings.TrimPrefix(r.URL.Path, "/proxy/")
		cacheHint, target := splitCacheHint(target)

		// routers tend to collapse the double slash after the scheme
		target = collapsedScheme.ReplaceAllString(target, "$1://$2")

		if r.URL.RawQuery != "" {
			target = target + "?" + r.URL.RawQuery
		}

		if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
			err = fmt.Errorf("relay target %s is not an absolute http url", target)
			log.Error().Err(err).Msg("bad request")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		req, err := http.NewRequestWithContext(ctx, r.Method, target, r.Body)
		if err != nil {
			log.Error().Err(err).Msg("failed to create relay request")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		response, err := httpClient.Do(req)
		if err != nil {
			log.Error().Err(err).Msg("relay request failed")
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		defer response.Body.Close()

		if contentType := response.Header.Get("Content-Type"); contentType != "" {
			w.Header().Add("Content-Type", contentType)
		}

		if maxAge := cacheHintMaxAge(cacheHint); maxAge > 0 {
			w.Header().Add("Cache-Control", fmt.Sprintf("max-age=%d", maxAge))
		}

		w.WriteHeader(response.StatusCode)
		io.Copy(w, response.Body)
	})
}

func splitCacheHint(target string) (string, string) {
	hint, rest, found := strings.Cut(target, "/")
	if found && cacheHintFormat.MatchString(hint) {
		return hint, rest
	}

	return "", target
}

func cacheHintMaxAge(hint string) int {
	match := cacheHintFormat.FindStringSubmatch(hint)
	if match == nil {
		return 0
	}

	value, _ := strconv.Atoi(match[1])

	switch match[2] {
	case "m":
		value *= 60
	case "h":
		value *= 3600
	case "d":
		value *= 86400
	}

	return value
}
