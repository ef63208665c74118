package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/akamensky/argparse"
	"go.uber.org/zap"

	"gitlab.com/pnathan/tagdex/src/lib/log"
	"gitlab.com/pnathan/tagdex/src/lib/tagdexapi"
)

func MustMarshal(v any) []byte {
	b := new(bytes.Buffer)
	encoder := json.NewEncoder(b)
	encoder.SetIndent("", "  ")
	err := encoder.Encode(v)
	if err != nil {
		panic(err)
	}

	return b.Bytes()
}

func Moan(complaint error) {
	log.Fatal("", zap.Error(complaint))
}

// buildQuery turns the command line into a query, a single key is sent as
// a plain string.
func buildQuery(keys []string, all, prefix bool) *tagdexapi.Query {
	q := &tagdexapi.Query{Mode: tagdexapi.ModeAny, Prefix: prefix}
	if all {
		q.Mode = tagdexapi.ModeAll
	}
	if len(keys) == 1 {
		q.Keys = keys[0]
	} else {
		q.Keys = keys
	}
	return q
}

func readBody(file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", file, err)
		}
		return string(data), nil
	}
	sin, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(sin), nil
}

func main() {
	parser := argparse.NewParser("tagdex client", "tagdex client code")

	endpoint := parser.String("e", "endpoint", &argparse.Options{Required: false, Help: "endpoint to address", Default: "http://localhost:1337"})

	docPutCmd := parser.NewCommand("doc-put", "index a document")
	docKeys := docPutCmd.StringList("k", "key", &argparse.Options{Required: true, Help: "key to index the document by, repeatable"})
	docFile := docPutCmd.String("f", "file", &argparse.Options{Required: false, Help: "file with the body; if not present, reads from stdin"})

	findCmd := parser.NewCommand("find", "exact lookup, several keys are a union")
	findKeys := findCmd.StringList("k", "key", &argparse.Options{Required: true, Help: "key, repeatable"})

	prefixCmd := parser.NewCommand("prefix", "prefix lookup")
	prefixKey := prefixCmd.String("k", "key", &argparse.Options{Required: true, Help: "prefix"})

	queryCmd := parser.NewCommand("query", "union or intersection query")
	queryKeys := queryCmd.StringList("k", "key", &argparse.Options{Required: true, Help: "key, repeatable"})
	queryAll := queryCmd.Flag("a", "all", &argparse.Options{Help: "intersection instead of union"})
	queryPrefix := queryCmd.Flag("p", "prefix", &argparse.Options{Help: "match keys by prefix"})

	peerPut := parser.NewCommand("peer-put", "puts the peer list")
	peerFile := peerPut.String("f", "file", &argparse.Options{Required: true, Help: "list of the peers"})
	peerGet := parser.NewCommand("peer-get", "gets the peer list")

	statsCmd := parser.NewCommand("stats", "index statistics")

	// Parse input
	err := parser.Parse(os.Args)
	if err != nil {
		// In case of error print error and print usage
		// This can also be done by passing -h or --help flags
		fmt.Print(parser.Usage(err))
		return
	}
	defer log.Sync()

	switch {
	case docPutCmd.Happened():
		body, err := readBody(*docFile)
		if err != nil {
			Moan(err)
		}
		d := tagdexapi.NewDocument(time.Now().Unix(), body, *docKeys...)
		if err := tagdexapi.PutDocument(d, *endpoint); err != nil {
			Moan(err)
		}
		fmt.Println(d.Uuid)
	case findCmd.Happened():
		res, err := tagdexapi.GetDocuments(*findKeys, *endpoint)
		if err != nil {
			Moan(err)
		}
		fmt.Println(string(MustMarshal(res)))
	case prefixCmd.Happened():
		res, err := tagdexapi.GetPrefix(*prefixKey, *endpoint)
		if err != nil {
			Moan(err)
		}
		fmt.Println(string(MustMarshal(res)))
	case queryCmd.Happened():
		res, err := tagdexapi.PostQuery(buildQuery(*queryKeys, *queryAll, *queryPrefix), *endpoint)
		if err != nil {
			Moan(err)
		}
		fmt.Println(string(MustMarshal(res)))
	case peerPut.Happened():
		filedata, err := os.ReadFile(*peerFile)
		if err != nil {
			Moan(err)
		}
		peers := &tagdexapi.Peerage{}
		if err := json.Unmarshal(filedata, peers); err != nil {
			Moan(err)
		}
		if err := tagdexapi.PutPeers(peers, *endpoint); err != nil {
			Moan(err)
		}
	case peerGet.Happened():
		peers, err := tagdexapi.GetPeers(*endpoint)
		if err != nil {
			Moan(err)
		}
		fmt.Println(string(MustMarshal(peers)))
	case statsCmd.Happened():
		st, err := tagdexapi.GetStatistics(*endpoint)
		if err != nil {
			Moan(err)
		}
		fmt.Println(string(MustMarshal(st)))
	default:
		Moan(fmt.Errorf("can't happen"))
	}
}
