package server

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coredata"
	"github.com/hupe1980/coredata/internal/metrics"
)

func newTestStore(t *testing.T) *coredata.Store {
	t.Helper()

	raw := filepath.Join(t.TempDir(), "raw")
	require.NoError(t, os.MkdirAll(raw, 0o755))

	var page []map[string]any
	for i := range 7 {
		page = append(page, map[string]any{
			"id":       fmt.Sprintf("r%d", i),
			"title":    fmt.Sprintf("Title %d", i),
			"fullText": fmt.Sprintf("Paper  %d TEXT", i),
		})
	}
	data, err := json.Marshal(page)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(raw, "q_0.json"), data, 0o644))

	dest := filepath.Join(t.TempDir(), "db")
	_, err = coredata.Convert(t.Context(), raw, coredata.Local(dest), coredata.WithLinesPerShard(3))
	require.NoError(t, err)

	s, err := coredata.Open(t.Context(), coredata.Local(dest))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type recordingObserver struct {
	routes []string
}

func (o *recordingObserver) ObserveHTTP(route string, code int, _ time.Duration) {
	o.routes = append(o.routes, fmt.Sprintf("%s %d", route, code))
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_Record(t *testing.T) {
	obs := &recordingObserver{}
	srv := New(newTestStore(t), WithObserver(obs))

	rec := get(t, srv, "/records/4")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "r4", body["id"])
	assert.EqualValues(t, 1, body["ft_file_num"])
	assert.EqualValues(t, 1, body["ft_line_num"])

	assert.Equal(t, []string{"/records/{seq:[0-9]+} 200"}, obs.routes)
}

func TestServer_RecordFullText(t *testing.T) {
	srv := New(newTestStore(t))

	rec := get(t, srv, "/records/2?extract=fulltext&raw=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"Paper  2 TEXT"`, rec.Body.String())

	rec = get(t, srv, "/records/2?extract=fulltext")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"paper *number* text"`, rec.Body.String())

	rec = get(t, srv, "/records/2?extract=pair")
	require.Equal(t, http.StatusOK, rec.Code)
	var pair map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	assert.Equal(t, true, pair["hasFullText"])
	assert.NotContains(t, pair["metadata"], "fullText")

	rec = get(t, srv, "/records/2?extract=tokens")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_RecordNotFound(t *testing.T) {
	srv := New(newTestStore(t))

	rec := get(t, srv, "/records/7")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")

	rec = get(t, srv, "/records/abc")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Metadata(t *testing.T) {
	srv := New(newTestStore(t))

	rec := get(t, srv, "/records/0/metadata")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Title 0", body["title"])
	assert.NotContains(t, body, "fullText")
	assert.EqualValues(t, 0, body["num_record"])
}

func TestServer_Line(t *testing.T) {
	srv := New(newTestStore(t))

	rec := get(t, srv, "/shards/2/lines/0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"r6"`)
	assert.False(t, strings.HasSuffix(rec.Body.String(), "\n"))

	rec = get(t, srv, "/shards/2/lines/1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func readStream(t *testing.T, rec *httptest.ResponseRecorder) []int {
	t.Helper()
	var seqs []int
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var item struct {
			Seq   int            `json:"seq"`
			Value map[string]any `json:"value"`
		}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &item))
		assert.Equal(t, fmt.Sprintf("r%d", item.Seq), item.Value["id"])
		seqs = append(seqs, item.Seq)
	}
	require.NoError(t, sc.Err())
	return seqs
}

func TestServer_Records(t *testing.T) {
	srv := New(newTestStore(t))

	rec := get(t, srv, "/records?start=1&end=3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, []int{1, 2, 3}, readStream(t, rec))

	rec = get(t, srv, "/records?shuffle=true")
	require.Equal(t, http.StatusOK, rec.Code)
	seqs := readStream(t, rec)
	sort.Ints(seqs)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, seqs)
}

func TestServer_RecordsBadRequest(t *testing.T) {
	srv := New(newTestStore(t), WithMaxRange(3))

	for _, target := range []string{
		"/records?start=x",
		"/records?start=4&end=2",
		"/records?start=-1",
		"/records?start=0&end=5",
		"/records?start=0&end=3",
		"/records?start=0&end=9223372036854775807",
		"/records?start=5&end=9223372036854775807",
		"/records?shuffle=maybe",
	} {
		rec := get(t, srv, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestServer_Stats(t *testing.T) {
	srv := New(newTestStore(t))

	rec := get(t, srv, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var st coredata.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 7, st.Rows)
	assert.Equal(t, 3, st.Shards)
}

func TestServer_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	prom := metrics.NewPrometheus(reg)
	srv := New(newTestStore(t), WithObserver(prom), WithGatherer(reg))

	require.Equal(t, http.StatusOK, get(t, srv, "/healthz").Code)

	rec := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `coredata_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestServer_NoMetricsWithoutGatherer(t *testing.T) {
	srv := New(newTestStore(t))
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/metrics").Code)
}
