package tagdexapi

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"gitlab.com/pnathan/tagdex/src/lib/log"
	"gitlab.com/pnathan/tagdex/src/lib/utility"
)

var (
	ErrDuplicate  = errors.New("document already seen")
	ErrBadRequest = errors.New("bad request")
)

type Document struct {
	// Uuid should be randomly generated for each document.
	Uuid uuid.UUID `json:"uuid"`
	// Timestamp should be the time the document is synthesized.
	Timestamp int64 `json:"unixtime"`
	// Keys are the index keys the document is stored under.
	Keys []string `json:"keys"`
	Body string   `json:"body"`

	fingerprint string
}

// NewDocument stamps a fresh uuid on the document.
func NewDocument(timestamp int64, body string, keys ...string) *Document {
	return &Document{
		Uuid:      uuid.New(),
		Timestamp: timestamp,
		Keys:      keys,
		Body:      body,
	}
}

// Fingerprint is the hex SHAKE-256 of the uuid, timestamp, sorted keys and
// body. It is computed once and cached.
func (d *Document) Fingerprint() string {
	if d.fingerprint == "" {
		bin, _ := d.Uuid.MarshalBinary() // never fails for a 16 byte uuid
		keys := append([]string(nil), d.Keys...)
		sort.Strings(keys)

		buf := utility.Concat(
			bin,
			utility.IntToBytes(d.Timestamp),
			utility.UintToBytes(uint64(len(keys))),
			[]byte(strings.Join(keys, "\x00")),
			[]byte{0},
			[]byte(d.Body),
		)
		h := make([]byte, 64)
		sha3.ShakeSum256(h, buf)
		d.fingerprint = hex.EncodeToString(h)
	}
	return d.fingerprint
}

func (d *Document) Validate() error {
	if d.Uuid == uuid.Nil {
		return fmt.Errorf("%w: missing uuid", ErrBadRequest)
	}
	if len(d.Keys) == 0 {
		return fmt.Errorf("%w: document has no keys", ErrBadRequest)
	}
	return nil
}

const (
	ModeAny = "any"
	ModeAll = "all"
)

// Query selects documents. Keys is a string or a list of strings, Mode is
// ModeAny (the default) or ModeAll.
type Query struct {
	Keys   any    `json:"keys"`
	Mode   string `json:"mode,omitempty"`
	Prefix bool   `json:"prefix,omitempty"`
}

func (q *Query) Validate() error {
	switch q.Mode {
	case "", ModeAny, ModeAll:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrBadRequest, q.Mode)
	}
	return nil
}

type Result struct {
	Documents []Document `json:"documents"`
}

type Peerage struct {
	Peers []string `json:"peers"`
}

type Statistics struct {
	Pending    int    `json:"pending"`
	Documents  int    `json:"documents"`
	Nodes      int    `json:"nodes"`
	References int    `json:"references"`
	Epoch      uint64 `json:"epoch"`
}

const (
	http_put  = "PUT"
	http_post = "POST"
	http_get  = "GET"
)

func httpPut(addr string, text []byte) (*http.Response, error) {
	return httpMethod(http_put, addr, text)
}

func httpPost(addr string, text []byte) (*http.Response, error) {
	return httpMethod(http_post, addr, text)
}

func httpGet(addr string) (*http.Response, error) {
	return httpMethod(http_get, addr, nil)
}

func httpMethod(method, addr string, text []byte) (*http.Response, error) {
	log.Debug("calling peer", zap.String("method", method), zap.String("endpoint", addr))
	buf := bytes.NewBuffer(text)
	client := &http.Client{}
	req, err := http.NewRequest(method, addr, buf)
	if err != nil {
		log.Warn("http error", zap.Error(err), zap.String("host", addr))
		return nil, err
	}
	if text != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Warn("http error", zap.Error(err), zap.String("host", addr))
		return nil, err
	}

	return resp, nil
}

func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
		return nil
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusNotAcceptable:
		return ErrDuplicate
	}
	return fmt.Errorf("bad status code: %d", resp.StatusCode)
}

func decode(resp *http.Response, v any, addr string) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		log.Warn("decoding error", zap.Error(err), zap.String("address", addr))
		return err
	}
	return nil
}

// PutDocument submits d to the node at addr.
func PutDocument(d *Document, addr string) error {
	text, err := json.Marshal(d)
	if err != nil {
		return err
	}
	formulatedAddress := fmt.Sprintf("%v/api/document", addr)

	resp, err := httpPut(formulatedAddress, text)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return statusError(resp)
}

// GetDocuments looks keys up exactly, several keys are a union.
func GetDocuments(keys []string, addr string) (*Result, error) {
	v := url.Values{}
	for _, k := range keys {
		v.Add("key", k)
	}
	formulatedAddress := fmt.Sprintf("%v/api/document?%s", addr, v.Encode())

	resp, err := httpGet(formulatedAddress)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return nil, err
	}

	res := &Result{}
	if err := decode(resp, res, formulatedAddress); err != nil {
		return nil, err
	}
	return res, nil
}

// GetPrefix returns the documents with a key starting with prefix.
func GetPrefix(prefix string, addr string) (*Result, error) {
	formulatedAddress := fmt.Sprintf("%v/api/document/prefix/%s", addr, url.PathEscape(prefix))

	resp, err := httpGet(formulatedAddress)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return nil, err
	}

	res := &Result{}
	if err := decode(resp, res, formulatedAddress); err != nil {
		return nil, err
	}
	return res, nil
}

func PostQuery(q *Query, addr string) (*Result, error) {
	text, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}
	formulatedAddress := fmt.Sprintf("%v/api/query", addr)

	resp, err := httpPost(formulatedAddress, text)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return nil, err
	}

	res := &Result{}
	if err := decode(resp, res, formulatedAddress); err != nil {
		return nil, err
	}
	return res, nil
}

func PutPeers(data *Peerage, addr string) error {
	text, err := json.Marshal(data)
	if err != nil {
		return err
	}
	formulatedAddress := fmt.Sprintf("%v/api/peers", addr)
	resp, err := httpPut(formulatedAddress, text)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusError(resp)
}

func GetPeers(addr string) (*Peerage, error) {
	formulatedAddress := fmt.Sprintf("%v/api/peers", addr)
	resp, err := httpGet(formulatedAddress)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return nil, err
	}

	s := &Peerage{}
	if err := decode(resp, s, formulatedAddress); err != nil {
		return nil, err
	}
	return s, nil
}

func GetStatistics(addr string) (*Statistics, error) {
	formulatedAddress := fmt.Sprintf("%v/api/statistics", addr)
	resp, err := httpGet(formulatedAddress)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return nil, err
	}

	s := &Statistics{}
	if err := decode(resp, s, formulatedAddress); err != nil {
		return nil, err
	}
	return s, nil
}
