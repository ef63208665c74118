package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/akamensky/argparse"
	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"go.uber.org/zap"

	"gitlab.com/pnathan/tagdex/src/lib/log"
	"gitlab.com/pnathan/tagdex/src/lib/tagdex"
	"gitlab.com/pnathan/tagdex/src/lib/tagdexapi"
)

var GLOBAL_INDEX *tagdex.InternalIndex

var GLOBAL_PEERS *tagdex.InternalPeers

var DOCUMENT_POOL *tagdex.Fifo[tagdexapi.Document]

// Allow for spikes
const MAX_LOCAL_POOL = 1000

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	if err != nil {
		log.Error("encoding response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(bytes)
}

// poolLength reads the pool size under its lock.
func poolLength() int {
	DOCUMENT_POOL.RLock()
	defer DOCUMENT_POOL.RUnlock()
	return DOCUMENT_POOL.Length()
}

func writeResult(w http.ResponseWriter, docs []*tagdexapi.Document) {
	res := tagdexapi.Result{Documents: make([]tagdexapi.Document, 0, len(docs))}
	for _, d := range docs {
		res.Documents = append(res.Documents, *d)
	}
	writeJSON(w, &res)
}

// enterDocument admits the document in the body, queues it for indexing
// and forwards it to the peers.
func enterDocument(w http.ResponseWriter, r *http.Request) {
	decoder := json.NewDecoder(r.Body)

	input := &tagdexapi.Document{}
	if err := decoder.Decode(input); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("couldn't decode"))
		return
	}

	// the fingerprint is recorded only once the document is queued, a
	// document turned away for lack of room can be sent again
	DOCUMENT_POOL.Lock()
	err := GLOBAL_INDEX.Check(input)
	if err == nil {
		err = DOCUMENT_POOL.Put(input)
	}
	if err == nil {
		err = GLOBAL_INDEX.Admit(input)
	}
	DOCUMENT_POOL.Unlock()
	if err != nil {
		switch {
		case errors.Is(err, tagdexapi.ErrDuplicate):
			log.Info("Attempted double-send of document", zap.String("uuid", input.Uuid.String()))
			w.WriteHeader(http.StatusNotAcceptable)
		case errors.Is(err, tagdexapi.ErrBadRequest):
			w.WriteHeader(http.StatusBadRequest)
		case errors.Is(err, tagdex.ErrFull):
			log.Error("Failure storing the document in the FIFO", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	log.Debug("document queued", zap.String("uuid", input.Uuid.String()), zap.Strings("keys", input.Keys))

	peerList := GLOBAL_PEERS.GetPeers()
	// fan out into go routines, peers that already hold the document
	// answer with a duplicate
	go func() {
		for _, p := range peerList {
			if _, err := url.Parse(p); err != nil {
				log.Info("unable to send to peer, unparsable url", zap.Error(err))
				continue
			}

			err := tagdexapi.PutDocument(input, p)
			if err != nil && !errors.Is(err, tagdexapi.ErrDuplicate) {
				log.Warn("unable to put document to peer", zap.String("host", p), zap.Error(err))
			}
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte("ok"))
}

// getDocuments looks up every key parameter exactly.
func getDocuments(w http.ResponseWriter, r *http.Request) {
	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("missing key"))
		return
	}
	writeResult(w, GLOBAL_INDEX.Find(keys))
}

func getPrefix(w http.ResponseWriter, r *http.Request) {
	prefix := mux.Vars(r)["prefix"]
	writeResult(w, GLOBAL_INDEX.FindPrefix(prefix))
}

func runQuery(w http.ResponseWriter, r *http.Request) {
	decoder := json.NewDecoder(r.Body)

	q := &tagdexapi.Query{}
	if err := decoder.Decode(q); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("couldn't decode"))
		return
	}

	docs, err := GLOBAL_INDEX.Run(q)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(err.Error()))
		return
	}
	writeResult(w, docs)
}

func putPeers(w http.ResponseWriter, r *http.Request) {
	decoder := json.NewDecoder(r.Body)

	peers := tagdexapi.Peerage{}
	if err := decoder.Decode(&peers); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("couldn't decode"))
		return
	}

	GLOBAL_PEERS.SetPeers(peers.Peers)
	_, _ = w.Write([]byte("ok"))
}

func getPeers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, &tagdexapi.Peerage{Peers: GLOBAL_PEERS.GetPeers()})
}

func statistics(w http.ResponseWriter, r *http.Request) {
	st := GLOBAL_INDEX.Stats()
	writeJSON(w, &tagdexapi.Statistics{
		Pending:    poolLength(),
		Documents:  st.Values,
		Nodes:      st.Nodes,
		References: st.References,
		Epoch:      st.Epoch,
	})
}

// processDocuments drains the pool into the index every durance, or early
// when the pool runs out of headroom.
func processDocuments(durance time.Duration) {
	// time before we startup...
	time.Sleep(time.Second * 1)

	nextDump := time.Now().Add(durance)
	log.Info("document processor...", zap.Duration("time between flushes", durance),
		zap.Int("max local pool size", MAX_LOCAL_POOL))

	// never ending loop
	for {
		// [500, 1500)
		sleepTime := 500 + time.Duration(rand.Intn(1000))

		if time.Now().After(nextDump) || poolLength() >= MAX_LOCAL_POOL {
			if n := tagdex.Drain(DOCUMENT_POOL, GLOBAL_INDEX); n > 0 {
				log.Info("indexed documents", zap.Int("count", n))
			}
			nextDump = time.Now().Add(durance)
		} else {
			log.Debug("statistics...", zap.Duration("time until next run", time.Until(nextDump)),
				zap.Int("headroom in pool", MAX_LOCAL_POOL-poolLength()))
		}

		time.Sleep(time.Millisecond * sleepTime)
	}
}

func fastPeerage(peers string) {
	log.Info("Peers file provided...reading", zap.String("filename", peers))
	filedata, err := os.ReadFile(peers)
	if err != nil {
		log.Error("Unable to read peer file", zap.String("filename", peers), zap.Error(err))
		return
	}
	peersStruct := &tagdexapi.Peerage{}
	if err := json.Unmarshal(filedata, peersStruct); err != nil {
		log.Error("unable to decode peer file", zap.String("filename", peers), zap.Error(err))
		return
	}
	GLOBAL_PEERS.SetPeers(peersStruct.Peers)
}

// loadCorpus indexes a JSON array of documents straight away.
func loadCorpus(corpus string) (int, error) {
	filedata, err := os.ReadFile(corpus)
	if err != nil {
		return 0, fmt.Errorf("reading corpus: %w", err)
	}
	docs := []*tagdexapi.Document{}
	if err := json.Unmarshal(filedata, &docs); err != nil {
		return 0, fmt.Errorf("decoding corpus %s: %w", corpus, err)
	}

	loaded := 0
	for _, d := range docs {
		if err := GLOBAL_INDEX.Admit(d); err != nil {
			log.Warn("skipping corpus document", zap.String("uuid", d.Uuid.String()), zap.Error(err))
			continue
		}
		if err := GLOBAL_INDEX.Insert(d); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

//////////////////////////////////////////////////////////////
func init() {
	GLOBAL_INDEX = tagdex.NewIndex()
	GLOBAL_PEERS = tagdex.NewPeers()
	DOCUMENT_POOL = tagdex.NewFifo[tagdexapi.Document]()
}

func Default(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok")
}

func Index(w http.ResponseWriter, r *http.Request) {
	index := `<html>
   <head>
      <script type = "text/javascript">
            function search() {
                let keys = document.getElementById("keys").value.split(/\s+/).filter(k => k);
                let body = {
                    keys: keys,
                    mode: document.getElementById("all").checked ? "all" : "any",
                    prefix: document.getElementById("prefix").checked,
                };
                fetch('/api/query', {method: 'POST', body: JSON.stringify(body)})
                .then(response => response.json())
                .then(data => {
                    document.getElementById("result").innerHTML = JSON.stringify(data["documents"], null, 8);
                });
            }
      </script>
   </head>

   <body>
<h1> tagdex</h1>
      <input type = "text" id = "keys" />
      <label><input type = "checkbox" id = "all" /> all</label>
      <label><input type = "checkbox" id = "prefix" /> prefix</label>
      <input type = "button" onclick = "search()" value = "Search" />
		<pre><div id="result"></div></pre>
<hr>
   </body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, index)
}

func Wut(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, "your content is in another url")
}

func loggerHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)
		log.Info("request", zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}

func recoverHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("handler panic", zap.Any("panic", err), zap.String("path", r.URL.Path))
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		h.ServeHTTP(w, r)
	})
}

func newRouter() http.Handler {
	r := mux.NewRouter()
	errorChain := alice.New(recoverHandler, loggerHandler)
	r.HandleFunc("/", Index)
	r.HandleFunc("/healthz", Default)

	r.HandleFunc("/api/document", enterDocument).Methods("PUT")
	r.HandleFunc("/api/document", getDocuments).Methods("GET")
	r.HandleFunc("/api/document/prefix/{prefix}", getPrefix).Methods("GET")
	r.HandleFunc("/api/query", runQuery).Methods("POST")
	r.HandleFunc("/api/statistics", statistics).Methods("GET")

	r.HandleFunc("/api/peers", putPeers).Methods("PUT")
	r.HandleFunc("/api/peers", getPeers).Methods("GET")

	r.NotFoundHandler = http.HandlerFunc(Wut)

	return errorChain.Then(r)
}

//////////////////////////////////////////////////////////////
func main() {
	parser := argparse.NewParser("tagdex", "runs a tagdex node")

	host := parser.String("i", "ip", &argparse.Options{Required: false, Help: "ip to bind to", Default: "0.0.0.0"})
	port := parser.String("p", "port", &argparse.Options{Required: false, Help: "port to bind to", Default: "1337"})
	peers := parser.String("q", "peers", &argparse.Options{Required: false, Help: "file containing name of peers"})
	corpus := parser.String("c", "corpus", &argparse.Options{Required: false, Help: "JSON file of documents to index at startup"})
	flush := parser.Int("f", "flush", &argparse.Options{Required: false, Help: "seconds between index flushes", Default: 5})
	debug := parser.Flag("d", "debug", &argparse.Options{Help: "development logging"})
	// Parse input
	err := parser.Parse(os.Args)
	if err != nil {
		// In case of error print error and print usage
		// This can also be done by passing -h or --help flags
		fmt.Print(parser.Usage(err))
		return
	}

	if err := log.Init(*debug); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if *peers != "" {
		fastPeerage(*peers)
	}
	if *corpus != "" {
		n, err := loadCorpus(*corpus)
		if err != nil {
			log.Fatal("unable to load corpus", zap.String("filename", *corpus), zap.Error(err))
		}
		log.Info("corpus loaded", zap.Int("documents", n))
	}

	log.Printf("Good morning. I am listening on %s:%s", *host, *port)

	go processDocuments(time.Duration(*flush) * time.Second)

	srv := &http.Server{
		Handler:      newRouter(),
		Addr:         fmt.Sprintf("%s:%s", *host, *port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	log.Fatal("server failure", zap.Error(srv.ListenAndServe()))
}
