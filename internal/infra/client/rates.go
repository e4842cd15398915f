// Package client holds HTTP clients for third-party APIs.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/boddenberg/caixa-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// DefaultRatesURL is the Banco Central SGS series for the annualized CDI
// (% a.a., 252 business days base), latest observation only.
const DefaultRatesURL = "https://api.bcb.gov.br/dados/serie/bcdata.sgs.4389/dados/ultimos/1?formato=json"

// sgsObservation is one point of an SGS series. Both fields are strings
// on the wire; data is dd/MM/yyyy.
type sgsObservation struct {
	Date  string `json:"data"`
	Value string `json:"valor"`
}

// RatesClient fetches the reference CDI rate (implements port.RateProvider).
type RatesClient struct {
	httpClient *http.Client
	url        string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewRatesClient creates a new RatesClient. An empty url uses DefaultRatesURL.
func NewRatesClient(httpClient *http.Client, url string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *RatesClient {
	if url == "" {
		url = DefaultRatesURL
	}
	return &RatesClient{
		httpClient: httpClient,
		url:        url,
		cb:         cb,
		cfg:        cfg,
	}
}

// CurrentCDIRate returns the latest annual CDI rate in percent, with retry,
// circuit breaker, and tracing.
func (c *RatesClient) CurrentCDIRate(ctx context.Context) (float64, error) {
	ctx, span := tracer.Start(ctx, "RatesClient.CurrentCDIRate")
	defer span.End()

	var rate float64
	err := resilience.Execute(c.cb, func() error {
		return resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
			if err != nil {
				return resilience.Permanent(err)
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return resilience.Permanent(fmt.Errorf("rates API returned status %d", resp.StatusCode))
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("rates API returned status %d", resp.StatusCode)
			}

			var series []sgsObservation
			if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
				return resilience.Permanent(fmt.Errorf("decode rates: %w", err))
			}
			if len(series) == 0 {
				return resilience.Permanent(&domain.ErrNotFound{Resource: "cdi rate", ID: "latest"})
			}

			latest := series[len(series)-1]
			v, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(latest.Value), ",", ".", 1), 64)
			if err != nil || v <= 0 {
				return resilience.Permanent(fmt.Errorf("invalid rate %q on %s", latest.Value, latest.Date))
			}
			rate = v
			span.SetAttributes(attribute.String("rate.date", latest.Date), attribute.Float64("rate.value", v))
			return nil
		})
	})
	if err != nil {
		return 0, &domain.ErrExternalService{Service: "rates", Err: err}
	}

	return rate, nil
}
