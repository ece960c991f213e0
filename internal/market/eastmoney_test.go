package market

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestAPIWithServer(handler http.HandlerFunc) (*EastmoneyAPI, *httptest.Server) {
	s := httptest.NewServer(handler)
	api := NewEastmoneyAPIWithBaseURL(s.URL).WithHTTPClient(s.Client())
	return api, s
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Status: 429, Body: "too many requests"}
	want := "API error 429: too many requests"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}

func TestEastmoneyAPI_LastPrice(t *testing.T) {
	api, srv := newTestAPIWithServer(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/qt/stock/get" {
			t.Errorf("path = %q, want /api/qt/stock/get", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("secid"); got != "1.600519" {
			t.Errorf("secid = %q, want 1.600519", got)
		}
		if q.Get("invt") != "2" || q.Get("fltt") != "1" {
			t.Errorf("invt/fltt = %s/%s, want 2/1", q.Get("invt"), q.Get("fltt"))
		}
		if q.Get("ut") == "" || q.Get("_") == "" {
			t.Error("ut and _ query keys must be set")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"rc":0,"data":{"f43":170550,"f59":2}}`))
	})
	defer srv.Close()

	price, err := api.LastPrice(context.Background(), "sh600519")
	if err != nil {
		t.Fatalf("LastPrice failed: %v", err)
	}
	if want := decimal.RequireFromString("1705.50"); !price.Equal(want) {
		t.Errorf("price = %s, want %s", price, want)
	}
}

func TestEastmoneyAPI_LastPrice_ShenzhenSecID(t *testing.T) {
	api, srv := newTestAPIWithServer(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("secid"); got != "0.000001" {
			t.Errorf("secid = %q, want 0.000001", got)
		}
		_, _ = w.Write([]byte(`{"rc":0,"data":{"f43":1234,"f59":2}}`))
	})
	defer srv.Close()

	if _, err := api.LastPrice(context.Background(), "sz000001"); err != nil {
		t.Fatalf("LastPrice failed: %v", err)
	}
}

func TestEastmoneyAPI_LastPrice_Halted(t *testing.T) {
	// Halted symbols publish "-" placeholders instead of numbers.
	api, srv := newTestAPIWithServer(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rc":0,"data":{"f43":"-","f59":2}}`))
	})
	defer srv.Close()

	if _, err := api.LastPrice(context.Background(), "sh600000"); err == nil {
		t.Error("LastPrice should fail when no price is published")
	}
}

func TestEastmoneyAPI_LastPrice_BadRC(t *testing.T) {
	api, srv := newTestAPIWithServer(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rc":100,"data":null}`))
	})
	defer srv.Close()

	if _, err := api.LastPrice(context.Background(), "sh600000"); err == nil {
		t.Error("LastPrice should fail on a non-zero rc")
	}
}

func TestEastmoneyAPI_LastPrice_HTTPError(t *testing.T) {
	api, srv := newTestAPIWithServer(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := api.LastPrice(context.Background(), "sh600000")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error should be *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", apiErr.Status)
	}
}

func TestEastmoneyAPI_Limits(t *testing.T) {
	api, srv := newTestAPIWithServer(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rc":0,"data":{"f51":1100,"f52":900,"f59":2}}`))
	})
	defer srv.Close()

	limits, err := api.Limits(context.Background(), "sh600000")
	if err != nil {
		t.Fatalf("Limits failed: %v", err)
	}
	if !limits.Upper.Equal(decimal.RequireFromString("11.00")) {
		t.Errorf("Upper = %s, want 11.00", limits.Upper)
	}
	if !limits.Lower.Equal(decimal.RequireFromString("9.00")) {
		t.Errorf("Lower = %s, want 9.00", limits.Lower)
	}
}

func TestEastmoneyAPI_Limits_Unpublished(t *testing.T) {
	// No band fields: callers get a zero band and skip validation.
	api, srv := newTestAPIWithServer(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rc":0,"data":{"f59":2}}`))
	})
	defer srv.Close()

	limits, err := api.Limits(context.Background(), "sh600000")
	if err != nil {
		t.Fatalf("Limits failed: %v", err)
	}
	if !limits.Zero() {
		t.Errorf("band = %+v, want zero band", limits)
	}
}

func TestEastmoneyAPI_Quote(t *testing.T) {
	api, srv := newTestAPIWithServer(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rc":0,"data":{
			"f43":1050,"f44":1080,"f45":1020,"f46":1030,"f47":123456,"f48":1.3e8,
			"f51":1133,"f52":927,"f58":"浦发银行","f59":2,"f60":1030,
			"f19":1049,"f20":100,"f17":1048,"f18":200,"f15":1047,"f16":300,"f13":1046,"f14":400,"f11":1045,"f12":500,
			"f39":1051,"f40":110,"f37":1052,"f38":210,"f35":1053,"f36":310,"f33":1054,"f34":410,"f31":1055,"f32":510
		}}`))
	})
	defer srv.Close()

	q, err := api.Quote(context.Background(), "sh600000")
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}

	if q.Name != "浦发银行" {
		t.Errorf("Name = %q, want 浦发银行", q.Name)
	}
	if !q.Last.Equal(decimal.RequireFromString("10.50")) {
		t.Errorf("Last = %s, want 10.50", q.Last)
	}
	if !q.PrevClose.Equal(decimal.RequireFromString("10.30")) {
		t.Errorf("PrevClose = %s, want 10.30", q.PrevClose)
	}
	if !q.Change.Equal(decimal.RequireFromString("0.20")) {
		t.Errorf("Change = %s, want 0.20", q.Change)
	}
	if !q.ChangePercent.Equal(decimal.RequireFromString("1.94")) {
		t.Errorf("ChangePercent = %s, want 1.94", q.ChangePercent)
	}
	if q.Volume != 123456 {
		t.Errorf("Volume = %d, want 123456", q.Volume)
	}

	if len(q.Bids) != 5 || len(q.Asks) != 5 {
		t.Fatalf("book depth = %d/%d, want 5/5", len(q.Bids), len(q.Asks))
	}
	if !q.Bids[0].Price.Equal(decimal.RequireFromString("10.49")) || q.Bids[0].Volume != 100 {
		t.Errorf("best bid = %s x %d, want 10.49 x 100", q.Bids[0].Price, q.Bids[0].Volume)
	}
	if !q.Asks[4].Price.Equal(decimal.RequireFromString("10.55")) || q.Asks[4].Volume != 510 {
		t.Errorf("fifth ask = %s x %d, want 10.55 x 510", q.Asks[4].Price, q.Asks[4].Volume)
	}
}

func TestEastmoneyAPI_Quote_NameFallback(t *testing.T) {
	api, srv := newTestAPIWithServer(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rc":0,"data":{"f43":1050,"f59":2}}`))
	})
	defer srv.Close()

	q, err := api.Quote(context.Background(), "sh600519")
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if q.Name != "股票0519" {
		t.Errorf("Name = %q, want 股票0519", q.Name)
	}
}

func TestSecID(t *testing.T) {
	cases := []struct {
		symbol string
		want   string
	}{
		{"sh600519", "1.600519"},
		{"sz000001", "0.000001"},
		{"sz300750", "0.300750"},
	}
	for _, tc := range cases {
		if got := secID(tc.symbol); got != tc.want {
			t.Errorf("secID(%q) = %q, want %q", tc.symbol, got, tc.want)
		}
	}
}

func TestDataScale(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]any
		want   int
	}{
		{"normal scale", map[string]any{"f59": float64(2)}, 2},
		{"no scaling flag", map[string]any{"f59": float64(-1)}, 0},
		{"zero scale", map[string]any{"f59": float64(0)}, 0},
		{"missing", map[string]any{}, 0},
		{"placeholder", map[string]any{"f59": "-"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := dataScale(tc.fields); got != tc.want {
				t.Errorf("dataScale = %d, want %d", got, tc.want)
			}
		})
	}
}
