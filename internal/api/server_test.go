package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matrixise/wallet-valuator/internal/exchange"
	"github.com/matrixise/wallet-valuator/internal/portfolio"
	"github.com/matrixise/wallet-valuator/internal/service"
	"github.com/matrixise/wallet-valuator/internal/valuation"
)

type stubValuer struct {
	report service.Report
	err    error
}

func (s stubValuer) Revalue(context.Context) (service.Report, error) {
	return s.report, s.err
}

type stubQuoter struct {
	calls [][3]string
	est   exchange.Estimate
	err   error
}

func (s *stubQuoter) Quote(_ context.Context, from, to, amount string) (exchange.Estimate, error) {
	s.calls = append(s.calls, [3]string{from, to, amount})
	return s.est, s.err
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestValuationsEndpoint(t *testing.T) {
	report := service.Report{
		Views: []valuation.View{{
			Symbol:          "OSMO",
			Amount:          decimal.RequireFromString("250.75"),
			Network:         "Osmosis",
			FormattedAmount: "250.7500",
			USDValue:        decimal.RequireFromString("313.4375"),
		}},
		Total:    decimal.RequireFromString("313.4375"),
		ValuedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	tests := []struct {
		name       string
		valuer     stubValuer
		wantStatus int
		wantCode   string
	}{
		{name: "ok", valuer: stubValuer{report: report}, wantStatus: http.StatusOK},
		{name: "no holdings", valuer: stubValuer{err: fmt.Errorf("load: %w", portfolio.ErrNoHoldings)}, wantStatus: http.StatusNotFound, wantCode: ErrCodeNotFound},
		{name: "failure", valuer: stubValuer{err: errors.New("disk on fire")}, wantStatus: http.StatusInternalServerError, wantCode: ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, NewRouter(tt.valuer, &stubQuoter{}, nil, nil), "/v1/valuations")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			if tt.wantCode != "" {
				var resp ErrorResponse
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
				assert.Equal(t, tt.wantCode, resp.Error.Code)
				assert.NotContains(t, resp.Error.Message, "disk on fire")
				return
			}

			var body struct {
				Views []map[string]any `json:"views"`
				Total string           `json:"total"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.Len(t, body.Views, 1)
			assert.Equal(t, "OSMO", body.Views[0]["symbol"])
			assert.Equal(t, "250.7500", body.Views[0]["formattedAmount"])
			assert.Equal(t, "313.4375", body.Views[0]["usdValue"])
			assert.Equal(t, "313.4375", body.Total)
		})
	}
}

func TestQuoteEndpoint(t *testing.T) {
	out := decimal.NewFromInt(5)
	q := &stubQuoter{est: exchange.Estimate{Source: "SRC", Destination: "DST", Amount: "10", Output: &out, Formatted: "5.000000"}}

	rec := serve(t, NewRouter(stubValuer{}, q, nil, nil), "/v1/quote?from=SRC&to=DST&amount=10")

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, q.calls, 1)
	assert.Equal(t, [3]string{"SRC", "DST", "10"}, q.calls[0])

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "5", body["output"])
	assert.Equal(t, "5.000000", body["formatted"])
}

func TestQuoteEndpointTimeout(t *testing.T) {
	q := &stubQuoter{
		est: exchange.Estimate{Source: "ETH", Destination: "USDC", Loading: exchange.Loading{Destination: true}},
		err: context.DeadlineExceeded,
	}

	rec := serve(t, NewRouter(stubValuer{}, q, nil, nil), "/v1/quote")

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Nil(t, body["output"])
	assert.Equal(t, true, body["loading"].(map[string]any)["destination"])
	assert.Equal(t, [3]string{"", "", ""}, q.calls[0])
}

func TestHealthRoute(t *testing.T) {
	called := false
	health := func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}

	rec := serve(t, NewRouter(stubValuer{}, &stubQuoter{}, health, nil), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)

	rec = serve(t, NewRouter(stubValuer{}, &stubQuoter{}, nil, nil), "/health")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	rec := serve(t, NewRouter(stubValuer{}, &stubQuoter{}, nil, nil), "/v2/nothing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
