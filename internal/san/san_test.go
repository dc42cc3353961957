package san

import (
	"reflect"
	"testing"
)

func TestU_Normalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"[Unit] Normalize: dns and ip", "DNS Name=a.com, IP Address=1.2.3.4", "dns=a.com&ip=1.2.3.4"},
		{"[Unit] Normalize: empty", "", ""},
		{"[Unit] Normalize: repeated email keeps order", "Email=x@y.com, Email=z@y.com", "email=x@y.com&email=z@y.com"},
		{"[Unit] Normalize: no labels", "Other Name:Principal Name=foo", ""},
		{"[Unit] Normalize: value stops at whitespace", "DNS Name=a.com b.com", "dns=a.com"},
		{"[Unit] Normalize: other label lower-cased", "URL=https://a.com/x, DNS Name=a.com", "url=https://a.com/x&dns=a.com"},
		{"[Unit] Normalize: rfc822 passes through", "RFC822 Name=ops@a.com", "rfc822 name=ops@a.com"},
		{"[Unit] Normalize: newline separated", "DNS Name=a.com\r\nDNS Name=b.com", "dns=a.com&dns=b.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestU_Parse_Order(t *testing.T) {
	names := Parse("IP Address=10.0.0.1, DNS Name=b.com, DNS Name=a.com")
	want := Names{
		{Kind: KindIP, Value: "10.0.0.1"},
		{Kind: KindDNS, Value: "b.com"},
		{Kind: KindDNS, Value: "a.com"},
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Parse() = %v, want %v", names, want)
	}

	dns := names.Values(KindDNS)
	if len(dns) != 2 || dns[0] != "b.com" || dns[1] != "a.com" {
		t.Errorf("Values(dns) = %v", dns)
	}
}

func TestU_NormalizeKind(t *testing.T) {
	tests := map[string]Kind{
		"DNS Name":   KindDNS,
		"dns name":   KindDNS,
		"Email":      KindEmail,
		"IP Address": KindIP,
		"URL":        Kind("url"),
	}
	for label, want := range tests {
		if got := NormalizeKind(label); got != want {
			t.Errorf("NormalizeKind(%q) = %q, want %q", label, got, want)
		}
	}
}
