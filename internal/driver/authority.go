package driver

import (
	"strings"

	"github.com/roach88/objgate/internal/ir"
)

// Authority is the set of read operations a driver is the source of truth
// for.
type Authority uint8

const (
	AuthGet Authority = 1 << iota
	AuthQuery
	AuthSearch

	// AuthNone marks a write-only replica.
	AuthNone Authority = 0

	// AuthAll claims every read operation.
	AuthAll = AuthGet | AuthQuery | AuthSearch
)

var authorityNames = []struct {
	name string
	bit  Authority
}{
	{"get", AuthGet},
	{"query", AuthQuery},
	{"search", AuthSearch},
}

// ParseAuthority parses a comma-separated capability tag such as
// "get,query". "*" or "all" claims everything; an empty tag claims nothing.
func ParseAuthority(tag string) (Authority, error) {
	var a Authority
	for _, part := range strings.Split(tag, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		switch part {
		case "":
			continue
		case "*", "all":
			a |= AuthAll
			continue
		}
		found := false
		for _, n := range authorityNames {
			if n.name == part {
				a |= n.bit
				found = true
				break
			}
		}
		if !found {
			return 0, ir.InvalidInput("unknown driver capability %q", part)
		}
	}
	return a, nil
}

// Has reports whether a includes every bit of op.
func (a Authority) Has(op Authority) bool {
	return op != 0 && a&op == op
}

// String renders the authority as a capability tag.
func (a Authority) String() string {
	var parts []string
	for _, n := range authorityNames {
		if a&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}
