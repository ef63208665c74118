package tagdex

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"gitlab.com/pnathan/tagdex/src/lib/log"
	"gitlab.com/pnathan/tagdex/src/lib/multitrie"
	"gitlab.com/pnathan/tagdex/src/lib/tagdexapi"
)

// InternalIndex serializes access to the document trie. Queries write
// epoch marks, so reads take the same exclusive lock as writes.
type InternalIndex struct {
	docs *multitrie.Trie[*tagdexapi.Document]
	// seen holds the fingerprint of every admitted document, keyed by seenKey.
	seen  *multitrie.Trie[string]
	Mutex sync.Mutex
}

func NewIndex() *InternalIndex {
	return &InternalIndex{
		docs: multitrie.New[*tagdexapi.Document](),
		seen: multitrie.New[string](),
	}
}

// seenKeyBytes is how much of the fingerprint digest keys the seen set.
const seenKeyBytes = 32

// seenKey packs the leading digest bytes of a hex fingerprint two at a time
// into supplementary plane code points, one trie node per 16 bits.
func seenKey(fp string) string {
	raw, err := hex.DecodeString(fp)
	if err != nil || len(raw) < seenKeyBytes {
		return fp
	}
	rs := make([]rune, 0, seenKeyBytes/2)
	for i := 0; i < seenKeyBytes; i += 2 {
		rs = append(rs, 0x10000+rune(binary.BigEndian.Uint16(raw[i:])))
	}
	return string(rs)
}

func (ix *InternalIndex) seenLocked(fp string) bool {
	return len(ix.seen.Find(seenKey(fp))) > 0
}

// Check validates d and reports tagdexapi.ErrDuplicate when it was admitted
// before. Nothing is recorded.
func (ix *InternalIndex) Check(d *tagdexapi.Document) error {
	if err := d.Validate(); err != nil {
		return err
	}
	ix.Mutex.Lock()
	defer ix.Mutex.Unlock()
	if ix.seenLocked(d.Fingerprint()) {
		return fmt.Errorf("%w: %s", tagdexapi.ErrDuplicate, d.Uuid)
	}
	return nil
}

// Admit is Check followed by recording the fingerprint. A document admitted
// once is rejected with tagdexapi.ErrDuplicate afterwards.
func (ix *InternalIndex) Admit(d *tagdexapi.Document) error {
	if err := d.Validate(); err != nil {
		return err
	}
	fp := d.Fingerprint()

	ix.Mutex.Lock()
	defer ix.Mutex.Unlock()
	if ix.seenLocked(fp) {
		return fmt.Errorf("%w: %s", tagdexapi.ErrDuplicate, d.Uuid)
	}
	return ix.seen.Add(fp, seenKey(fp))
}

func (ix *InternalIndex) HasSeen(d *tagdexapi.Document) bool {
	fp := d.Fingerprint()
	ix.Mutex.Lock()
	defer ix.Mutex.Unlock()
	return ix.seenLocked(fp)
}

// Insert indexes d under all of its keys.
func (ix *InternalIndex) Insert(d *tagdexapi.Document) error {
	ix.Mutex.Lock()
	defer ix.Mutex.Unlock()
	if err := ix.docs.Add(d, d.Keys...); err != nil {
		return fmt.Errorf("indexing %s: %w", d.Uuid, err)
	}
	return nil
}

// Find looks keys up exactly. One key keeps insertion order, several keys
// are a union.
func (ix *InternalIndex) Find(keys []string) []*tagdexapi.Document {
	ix.Mutex.Lock()
	defer ix.Mutex.Unlock()
	if len(keys) == 1 {
		return ix.docs.Find(keys[0])
	}
	return ix.docs.FindAny(keys)
}

func (ix *InternalIndex) FindPrefix(prefix string) []*tagdexapi.Document {
	ix.Mutex.Lock()
	defer ix.Mutex.Unlock()
	return ix.docs.FindPrefix(prefix)
}

// Run evaluates q. Malformed keys yield an empty result, an unknown mode
// is an error.
func (ix *InternalIndex) Run(q *tagdexapi.Query) ([]*tagdexapi.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ix.Mutex.Lock()
	defer ix.Mutex.Unlock()

	if q.Mode != tagdexapi.ModeAll {
		if q.Prefix {
			return ix.docs.QueryPrefix(q.Keys), nil
		}
		return ix.docs.Query(q.Keys), nil
	}

	keys, ok := multitrie.Keys(q.Keys)
	if !ok {
		return []*tagdexapi.Document{}, nil
	}
	if q.Prefix {
		return ix.docs.FindPrefixAll(keys), nil
	}
	return ix.docs.FindAll(keys), nil
}

func (ix *InternalIndex) Stats() multitrie.Stats {
	ix.Mutex.Lock()
	defer ix.Mutex.Unlock()
	return ix.docs.Stats()
}

// Drain moves every queued document into the index and returns how many
// were indexed.
func Drain(f *Fifo[tagdexapi.Document], ix *InternalIndex) int {
	f.Lock()
	defer f.Unlock()

	added := 0
	for {
		d, ok := f.Pop()
		if !ok {
			break
		}
		if err := ix.Insert(d); err != nil {
			log.Warn("dropping document", zap.String("uuid", d.Uuid.String()), zap.Error(err))
			continue
		}
		added++
	}
	if f.Length() != 0 {
		log.Error("Consistency error")
	}
	return added
}
