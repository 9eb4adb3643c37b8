package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/runtrack-go/internal/models"
)

func samplePayload() *models.RunPayload {
	return &models.RunPayload{
		Distance:      1.234,
		Duration:      420,
		Pace:          5.67,
		Calories:      98,
		Route:         geojson.NewGeometry(orb.LineString{{82.5, 24.5}, {82.5, 24.51}}),
		StartLocation: geojson.NewGeometry(orb.Point{82.5, 24.5}),
		EndLocation:   geojson.NewGeometry(orb.Point{82.5, 24.51}),
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestSaveRun(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/runs", r.URL.Path)
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var body struct {
			Distance float64 `json:"distance"`
			Duration int64   `json:"duration"`
			Route    struct {
				Type        string      `json:"type"`
				Coordinates [][]float64 `json:"coordinates"`
			} `json:"route"`
			StartLocation struct {
				Coordinates []float64 `json:"coordinates"`
			} `json:"startLocation"`
		}
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, 1.234, body.Distance)
		assert.Equal(t, int64(420), body.Duration)
		assert.Equal(t, "LineString", body.Route.Type)
		if assert.Len(t, body.Route.Coordinates, 2) {
			assert.Equal(t, []float64{82.5, 24.5}, body.Route.Coordinates[0])
		}
		assert.Equal(t, []float64{82.5, 24.5}, body.StartLocation.Coordinates)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"_id":"run-42"}}`))
	}))
	defer srv.Close()

	c := NewRunsClient(Config{BaseURL: srv.URL + "/api/", Token: token})
	saved, err := c.SaveRun(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.Equal(t, "run-42", saved.ID)
}

func TestSaveRunAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"route must have at least two points"}`))
	}))
	defer srv.Close()

	c := NewRunsClient(Config{BaseURL: srv.URL, Token: "opaque-token"})
	_, err := c.SaveRun(context.Background(), samplePayload())

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "route must have at least two points", apiErr.Message)
	assert.False(t, apiErr.Temporary())
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusUnprocessableEntity)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"id":"ok"}`))
	}))
	defer srv.Close()

	c := NewRunsClient(Config{BaseURL: srv.URL, Token: "opaque-token"})
	for i := 0; i < 8; i++ {
		_, err := c.SaveRun(context.Background(), samplePayload())
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	status.Store(http.StatusOK)
	saved, err := c.SaveRun(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.Equal(t, "ok", saved.ID)
}

func TestServerErrorsOpenBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewRunsClient(Config{BaseURL: srv.URL, Token: "opaque-token"})
	for i := 0; i < 5; i++ {
		_, err := c.SaveRun(context.Background(), samplePayload())
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.True(t, apiErr.Temporary())
	}

	_, err := c.SaveRun(context.Background(), samplePayload())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), hits.Load())
}

func TestTokenChecks(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := NewRunsClient(Config{BaseURL: srv.URL}).SaveRun(context.Background(), samplePayload())
	assert.ErrorIs(t, err, ErrNoToken)

	expired := signedToken(t, time.Now().Add(-time.Minute))
	_, err = NewRunsClient(Config{BaseURL: srv.URL, Token: expired}).SaveRun(context.Background(), samplePayload())
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Zero(t, hits.Load())

	valid := signedToken(t, time.Now().Add(time.Hour))
	saved, err := NewRunsClient(Config{BaseURL: srv.URL, Token: valid}).SaveRun(context.Background(), samplePayload())
	require.NoError(t, err)
	assert.Empty(t, saved.ID)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDecodeSavedRun(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"id":"a"}`, "a"},
		{`{"_id":"b"}`, "b"},
		{`{"data":{"_id":"c"}}`, "c"},
		{`{"run":{"id":"d"}}`, "d"},
		{`{"data":{"run":{"_id":"e"}}}`, "e"},
		{`not json`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, decodeSavedRun([]byte(tt.body)).ID, tt.body)
	}
}
