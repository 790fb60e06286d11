// Package classify sorts arbitrary pipeline failures into the coarse error
// taxonomy attached to outgoing error envelopes.
package classify

import "strings"

// Kind is one of the five taxonomy categories.
type Kind string

const (
	Timeout    Kind = "TIMEOUT"
	Network    Kind = "NETWORK"
	Permission Kind = "PERMISSION"
	Format     Kind = "FORMAT"
	Processing Kind = "PROCESSING"
)

// matchers are checked in priority order. The upstream session surfaces
// errors in both English and German, so both vocabularies are matched.
var matchers = []struct {
	kind  Kind
	terms []string
}{
	{Timeout, []string{"timeout", "zeit"}},
	{Network, []string{"network", "netzwerk", "connection", "verbindung"}},
	{Permission, []string{"permission", "berechtigung", "access", "zugriff"}},
	{Format, []string{"format", "parse", "encoding", "codierung"}},
}

// Classify maps any error to its taxonomy Kind. It never fails; a nil or
// unrecognized error classifies as Processing.
func Classify(err error) Kind {
	if err == nil {
		return Processing
	}
	msg := strings.ToLower(err.Error())
	for _, m := range matchers {
		for _, term := range m.terms {
			if strings.Contains(msg, term) {
				return m.kind
			}
		}
	}
	return Processing
}
