package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheetchat/sheetchat/internal/config"
	"github.com/sheetchat/sheetchat/internal/dataset"
	"github.com/sheetchat/sheetchat/internal/plan"
	"github.com/sheetchat/sheetchat/internal/render"
)

func newTestServer(t *testing.T) (*httptest.Server, *http.Client) {
	t.Helper()

	store, err := dataset.NewStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.DefaultConfig()
	cfg.Server.SessionSecret = "test-secret"

	srv := NewServer(cfg, store, nil)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return ts, &http.Client{Jar: jar}
}

func uploadCSV(t *testing.T, ts *httptest.Server, client *http.Client, csv string) uploadResponse {
	t.Helper()

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "data.csv")
	require.NoError(t, err)

	_, err = io.Copy(fw, strings.NewReader(csv))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := client.Post(ts.URL+"/api/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)

	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out uploadResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func ask(t *testing.T, ts *httptest.Server, client *http.Client, question string) *render.Response {
	t.Helper()

	body, err := json.Marshal(askRequest{Question: question})
	require.NoError(t, err)

	resp, err := client.Post(ts.URL+"/api/ask", "application/json", bytes.NewReader(body))
	require.NoError(t, err)

	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out render.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return &out
}

const fixtureCSV = "Region,Sales,Units\nNorth,100,10\nSouth,200,20\nNorth,300,30\nEast,400,40\n"

func TestUpload(t *testing.T) {
	ts, client := newTestServer(t)

	out := uploadCSV(t, ts, client, fixtureCSV)

	assert.NotEmpty(t, out.SessionID)
	require.NotNil(t, out.Table)
	assert.Equal(t, 4, out.Table.RowCount)
	assert.Len(t, out.Table.Columns, 3)
}

func TestUploadRejectsUnknownFormat(t *testing.T) {
	ts, client := newTestServer(t)

	var buf bytes.Buffer

	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "data.pdf")
	_, _ = fw.Write([]byte("not a spreadsheet"))
	require.NoError(t, mw.Close())

	resp, err := client.Post(ts.URL+"/api/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)

	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAskStats(t *testing.T) {
	ts, client := newTestServer(t)
	uploadCSV(t, ts, client, fixtureCSV)

	resp := ask(t, ts, client, "what is the average of sales?")

	assert.Equal(t, "rules", resp.Source)
	require.NotEmpty(t, resp.Stats)
	assert.Equal(t, "Sales", resp.Stats[0].Column)
	assert.InDelta(t, 250, resp.Stats[0].Summary.Mean, 1e-9)
}

func TestAskChart(t *testing.T) {
	ts, client := newTestServer(t)
	uploadCSV(t, ts, client, fixtureCSV)

	resp := ask(t, ts, client, "chart sales for each region")

	require.Len(t, resp.Charts, 1)
	assert.NotEmpty(t, resp.Charts[0].Groups)
}

func TestAskWithoutSession(t *testing.T) {
	ts, client := newTestServer(t)

	body, _ := json.Marshal(askRequest{Question: "hi"})

	resp, err := client.Post(ts.URL+"/api/ask", "application/json", bytes.NewReader(body))
	require.NoError(t, err)

	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var out errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.Suggestions)
}

func TestAskEmptyQuestion(t *testing.T) {
	ts, client := newTestServer(t)
	uploadCSV(t, ts, client, fixtureCSV)

	body, _ := json.Marshal(askRequest{Question: "   "})

	resp, err := client.Post(ts.URL+"/api/ask", "application/json", bytes.NewReader(body))
	require.NoError(t, err)

	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestActionDashboard(t *testing.T) {
	ts, client := newTestServer(t)
	uploadCSV(t, ts, client, fixtureCSV)

	resp, err := client.Post(ts.URL+"/api/action/dashboard", "application/json", nil)
	require.NoError(t, err)

	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out render.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.Charts)
}

func TestActionCharts(t *testing.T) {
	ts, client := newTestServer(t)
	uploadCSV(t, ts, client, fixtureCSV)

	resp, err := client.Post(ts.URL+"/api/action/charts", "application/json", nil)
	require.NoError(t, err)

	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out render.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.Charts)

	// One histogram per numeric column.
	for _, c := range out.Charts {
		assert.Equal(t, plan.ChartHistogram, c.Type)
	}
}

func TestActionSummary(t *testing.T) {
	ts, client := newTestServer(t)
	uploadCSV(t, ts, client, fixtureCSV)

	resp, err := client.Post(ts.URL+"/api/action/summary", "application/json", nil)
	require.NoError(t, err)

	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out render.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.Stats)
}

func TestActionOverview(t *testing.T) {
	ts, client := newTestServer(t)
	uploadCSV(t, ts, client, fixtureCSV)

	resp, err := client.Post(ts.URL+"/api/action/overview", "application/json", nil)
	require.NoError(t, err)

	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out render.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out.Text, "Region")
	assert.NotContains(t, out.Text, "North")
}

func TestActionUnknown(t *testing.T) {
	ts, client := newTestServer(t)
	uploadCSV(t, ts, client, fixtureCSV)

	resp, err := client.Post(ts.URL+"/api/action/explode", "application/json", nil)
	require.NoError(t, err)

	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTranscript(t *testing.T) {
	ts, client := newTestServer(t)
	uploadCSV(t, ts, client, fixtureCSV)

	ask(t, ts, client, "average sales")

	resp, err := client.Get(ts.URL + "/api/transcript")
	require.NoError(t, err)

	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Entries []json.RawMessage `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Len(t, out.Entries, 2)
}

func TestOverview(t *testing.T) {
	ts, client := newTestServer(t)
	uploadCSV(t, ts, client, fixtureCSV)

	resp, err := client.Get(ts.URL + "/api/overview")
	require.NoError(t, err)

	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Region")
	// Overview carries schema and profiles, never cell values.
	assert.NotContains(t, string(body), "North")
}

func TestResetDestroysSession(t *testing.T) {
	ts, client := newTestServer(t)
	uploadCSV(t, ts, client, fixtureCSV)

	resp, err := client.Post(ts.URL+"/api/reset", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(ts.URL + "/api/transcript")
	require.NoError(t, err)

	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadReplacesSession(t *testing.T) {
	ts, client := newTestServer(t)

	first := uploadCSV(t, ts, client, fixtureCSV)
	ask(t, ts, client, "average sales")

	second := uploadCSV(t, ts, client, "City,Pop\nParis,2\nLyon,1\n")
	assert.NotEqual(t, first.SessionID, second.SessionID)

	resp, err := client.Get(ts.URL + "/api/transcript")
	require.NoError(t, err)

	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Entries []json.RawMessage `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Empty(t, out.Entries)
}

func TestStaticIndex(t *testing.T) {
	ts, client := newTestServer(t)

	resp, err := client.Get(ts.URL + "/")
	require.NoError(t, err)

	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "SheetChat")
}
