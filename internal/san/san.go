// Package san normalizes Subject Alternative Name text as rendered by the
// Windows certificate store into a compact, order-preserving key=value form.
//
// Windows formats the SAN extension as free text, e.g.
//
//	DNS Name=www.example.com, DNS Name=example.com, IP Address=10.0.0.1
//
// Normalize turns that into
//
//	dns=www.example.com&dns=example.com&ip=10.0.0.1
package san

import (
	"regexp"
	"strings"
)

// Kind is the normalized name type of a SAN entry.
type Kind string

const (
	KindDNS   Kind = "dns"
	KindEmail Kind = "email"
	KindIP    Kind = "ip"
)

// namePattern matches "<Label>=<value>". The value stops at whitespace, a
// comma or another '='.
var namePattern = regexp.MustCompile(`(?P<key>DNS Name|Email|IP Address|RFC822 Name|URL)=(?P<value>[^=,\s]+)`)

// Name is a single normalized SAN entry.
type Name struct {
	Kind  Kind
	Value string
}

// String returns "kind=value".
func (n Name) String() string {
	return string(n.Kind) + "=" + n.Value
}

// Names is an ordered list of SAN entries.
type Names []Name

// String joins the entries with '&'. An empty list yields "".
func (ns Names) String() string {
	if len(ns) == 0 {
		return ""
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = n.String()
	}
	return strings.Join(parts, "&")
}

// Values returns the values of the given kind in order of appearance.
func (ns Names) Values(kind Kind) []string {
	var out []string
	for _, n := range ns {
		if n.Kind == kind {
			out = append(out, n.Value)
		}
	}
	return out
}

// Parse extracts the SAN entries from raw in first-occurrence order.
// Text that contains no recognizable label yields an empty list.
func Parse(raw string) Names {
	matches := namePattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}

	names := make(Names, 0, len(matches))
	for _, m := range matches {
		names = append(names, Name{
			Kind:  NormalizeKind(m[1]),
			Value: m[2],
		})
	}
	return names
}

// Normalize is Parse followed by String.
func Normalize(raw string) string {
	return Parse(raw).String()
}

// NormalizeKind maps a Windows SAN label to its short kind. Labels outside
// the known vocabulary are lower-cased and passed through.
func NormalizeKind(label string) Kind {
	switch lower := strings.ToLower(label); lower {
	case "dns name":
		return KindDNS
	case "email":
		return KindEmail
	case "ip address":
		return KindIP
	default:
		return Kind(lower)
	}
}
