package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gitlab.com/pnathan/tagdex/src/lib/log"
	"gitlab.com/pnathan/tagdex/src/lib/tagdex"
	"gitlab.com/pnathan/tagdex/src/lib/tagdexapi"
)

func reset(t *testing.T) http.Handler {
	t.Helper()
	log.Use(zap.NewNop())
	GLOBAL_INDEX = tagdex.NewIndex()
	GLOBAL_PEERS = tagdex.NewPeers()
	DOCUMENT_POOL = tagdex.NewFifo[tagdexapi.Document]()
	return newRouter()
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
	return rec
}

func result(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := &tagdexapi.Result{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), res))
	out := []string{}
	for _, d := range res.Documents {
		out = append(out, d.Body)
	}
	return out
}

func TestDocumentLifecycle(t *testing.T) {
	h := reset(t)

	gopher := tagdexapi.NewDocument(1, "gopher", "go", "mascot")
	rust := tagdexapi.NewDocument(2, "rust", "rust", "mascot")

	assert.Equal(t, http.StatusAccepted, do(t, h, "PUT", "/api/document", gopher).Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, "PUT", "/api/document", rust).Code)
	assert.Equal(t, http.StatusNotAcceptable, do(t, h, "PUT", "/api/document", gopher).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "PUT", "/api/document", "{nope").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "PUT", "/api/document",
		&tagdexapi.Document{Uuid: uuid.New(), Body: "no keys"}).Code)

	// queued, not yet indexed
	st := &tagdexapi.Statistics{}
	require.NoError(t, json.Unmarshal(do(t, h, "GET", "/api/statistics", nil).Body.Bytes(), st))
	assert.Equal(t, 2, st.Pending)
	assert.Equal(t, 0, st.Documents)
	assert.Empty(t, result(t, do(t, h, "GET", "/api/document?key=go", nil)))

	require.Equal(t, 2, tagdex.Drain(DOCUMENT_POOL, GLOBAL_INDEX))

	assert.Equal(t, []string{"gopher"}, result(t, do(t, h, "GET", "/api/document?key=go", nil)))
	assert.ElementsMatch(t, []string{"gopher", "rust"},
		result(t, do(t, h, "GET", "/api/document?key=go&key=rust", nil)))
	assert.ElementsMatch(t, []string{"gopher", "rust"},
		result(t, do(t, h, "GET", "/api/document/prefix/ma", nil)))
	assert.Equal(t, http.StatusBadRequest, do(t, h, "GET", "/api/document", nil).Code)

	require.NoError(t, json.Unmarshal(do(t, h, "GET", "/api/statistics", nil).Body.Bytes(), st))
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, 2, st.Documents)
	assert.Equal(t, 4, st.References)
}

func TestQueryEndpoint(t *testing.T) {
	h := reset(t)
	for _, d := range []*tagdexapi.Document{
		tagdexapi.NewDocument(1, "gopher", "go", "animal", "mascot"),
		tagdexapi.NewDocument(2, "rust", "rust", "mascot"),
		tagdexapi.NewDocument(3, "golang", "go", "language"),
	} {
		require.NoError(t, GLOBAL_INDEX.Admit(d))
		require.NoError(t, GLOBAL_INDEX.Insert(d))
	}

	tests := []struct {
		name string
		body string
		want []string
		code int
	}{
		{name: "string", body: `{"keys":"go"}`, want: []string{"gopher", "golang"}},
		{name: "any", body: `{"keys":["rust","language"]}`, want: []string{"rust", "golang"}},
		{name: "all", body: `{"keys":["go","mascot"],"mode":"all"}`, want: []string{"gopher"}},
		{name: "prefix all", body: `{"keys":["g","m"],"mode":"all","prefix":true}`, want: []string{"gopher"}},
		{name: "prefix any", body: `{"keys":["an","ru"],"prefix":true}`, want: []string{"gopher", "rust"}},
		{name: "wrong key type", body: `{"keys":{"a":1}}`, want: []string{}},
		{name: "bad mode", body: `{"keys":"go","mode":"xor"}`, code: http.StatusBadRequest},
		{name: "bad json", body: `{`, code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, "POST", "/api/query", tt.body)
			if tt.code != 0 {
				assert.Equal(t, tt.code, rec.Code)
				return
			}
			assert.ElementsMatch(t, tt.want, result(t, rec))
		})
	}
}

func TestPeersEndpoint(t *testing.T) {
	h := reset(t)

	assert.Equal(t, http.StatusOK, do(t, h, "PUT", "/api/peers", &tagdexapi.Peerage{Peers: []string{"http://a:1"}}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "PUT", "/api/peers", "[").Code)

	peers := &tagdexapi.Peerage{}
	require.NoError(t, json.Unmarshal(do(t, h, "GET", "/api/peers", nil).Body.Bytes(), peers))
	assert.Equal(t, []string{"http://a:1"}, peers.Peers)
}

func TestMisc(t *testing.T) {
	h := reset(t)

	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, "GET", "/", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/api/chain", nil).Code)
}

func TestFanOut(t *testing.T) {
	h := reset(t)

	got := make(chan *tagdexapi.Document, 1)
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := &tagdexapi.Document{}
		_ = json.NewDecoder(r.Body).Decode(d)
		got <- d
	}))
	defer peer.Close()
	GLOBAL_PEERS.SetPeers([]string{peer.URL})

	doc := tagdexapi.NewDocument(1, "forwarded", "k")
	body, err := json.Marshal(doc)
	require.NoError(t, err)

	// the sender shares the peer's host, it is still forwarded to
	req := httptest.NewRequest("PUT", "/api/document", bytes.NewReader(body))
	req.RemoteAddr = strings.TrimPrefix(peer.URL, "http://")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	fwd := <-got
	assert.Equal(t, doc.Uuid, fwd.Uuid)
	assert.Equal(t, doc.Fingerprint(), fwd.Fingerprint())
}

// A document turned away by a full pool is not remembered as seen.
func TestFullPoolRetry(t *testing.T) {
	h := reset(t)
	DOCUMENT_POOL = tagdex.NewFifoSize[tagdexapi.Document](1)

	first := tagdexapi.NewDocument(1, "first", "k")
	second := tagdexapi.NewDocument(2, "second", "k")

	require.Equal(t, http.StatusAccepted, do(t, h, "PUT", "/api/document", first).Code)
	require.Equal(t, http.StatusServiceUnavailable, do(t, h, "PUT", "/api/document", second).Code)
	assert.False(t, GLOBAL_INDEX.HasSeen(second))

	require.Equal(t, 1, tagdex.Drain(DOCUMENT_POOL, GLOBAL_INDEX))

	rec := do(t, h, "PUT", "/api/document", second)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusNotAcceptable, do(t, h, "PUT", "/api/document", second).Code)

	require.Equal(t, 1, tagdex.Drain(DOCUMENT_POOL, GLOBAL_INDEX))
	assert.Equal(t, []string{"first", "second"}, result(t, do(t, h, "GET", "/api/document?key=k", nil)))
}

// Statistics read the pool while puts and drains write it.
func TestConcurrentStatistics(t *testing.T) {
	h := reset(t)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			d := tagdexapi.NewDocument(int64(i), "body", "k")
			if code := do(t, h, "PUT", "/api/document", d).Code; code != http.StatusAccepted {
				t.Errorf("put returned %d", code)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			tagdex.Drain(DOCUMENT_POOL, GLOBAL_INDEX)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if code := do(t, h, "GET", "/api/statistics", nil).Code; code != http.StatusOK {
				t.Errorf("statistics returned %d", code)
				return
			}
			_ = poolLength()
		}
	}()
	wg.Wait()

	tagdex.Drain(DOCUMENT_POOL, GLOBAL_INDEX)
	st := &tagdexapi.Statistics{}
	require.NoError(t, json.Unmarshal(do(t, h, "GET", "/api/statistics", nil).Body.Bytes(), st))
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, 50, st.Documents)
}

func TestLoadCorpus(t *testing.T) {
	reset(t)

	docs := []*tagdexapi.Document{
		tagdexapi.NewDocument(1, "a", "x"),
		tagdexapi.NewDocument(2, "b", "x", "y"),
	}
	docs = append(docs, docs[0])
	data, err := json.Marshal(docs)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "corpus.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	n, err := loadCorpus(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, GLOBAL_INDEX.Find([]string{"x"}), 2)

	_, err = loadCorpus(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestFastPeerage(t *testing.T) {
	reset(t)
	path := filepath.Join(t.TempDir(), "peers.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"peers":["http://p:1337"]}`), 0o600))

	fastPeerage(path)
	assert.Equal(t, []string{"http://p:1337"}, GLOBAL_PEERS.GetPeers())
}
