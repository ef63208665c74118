package tagdex

import (
	"sync"

	"gitlab.com/pnathan/tagdex/src/lib/tagdexapi"
)

type InternalPeers struct {
	tagdexapi.Peerage
	sync.Mutex
}

func NewPeers() *InternalPeers {
	p := tagdexapi.Peerage{Peers: []string{}}
	return &InternalPeers{Peerage: p}
}

func (r *InternalPeers) GetPeers() []string {
	r.Lock()
	defer r.Unlock()
	return append([]string{}, r.Peers...)
}

func (r *InternalPeers) SetPeers(peers []string) {
	r.Lock()
	defer r.Unlock()
	r.Peers = append([]string{}, peers...)
}
