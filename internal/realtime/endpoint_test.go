package realtime

import "testing"

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		want    string
		wantErr bool
	}{
		{name: "http", base: "http://hub.local:8787", want: "ws://hub.local:8787/ws/client"},
		{name: "https", base: "https://hub.example.com", want: "wss://hub.example.com/ws/client"},
		{name: "already ws", base: "ws://hub.local", want: "ws://hub.local/ws/client"},
		{name: "trailing path dropped", base: "https://hub.example.com/api", want: "wss://hub.example.com/ws/client"},
		{name: "bad scheme", base: "ftp://hub.local", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EndpointURL(tt.base)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("EndpointURL(%q) = %q, want error", tt.base, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("EndpointURL(%q): %v", tt.base, err)
			}
			if got != tt.want {
				t.Errorf("EndpointURL(%q) = %q, want %q", tt.base, got, tt.want)
			}
		})
	}
}
