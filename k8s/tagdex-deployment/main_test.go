package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeerage(t *testing.T) {
	p := peerage("tagdex")
	assert.Equal(t, []string{
		"http://tagdex-0.tagdex.tagdex:1337",
		"http://tagdex-1.tagdex.tagdex:1337",
		"http://tagdex-2.tagdex.tagdex:1337",
	}, p.Peers)
}
