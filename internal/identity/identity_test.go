package identity

import (
	"strings"
	"testing"
)

func TestNewIdentityShape(t *testing.T) {
	peer := New("addr-123")

	if peer.ChannelAddress != "addr-123" {
		t.Errorf("Expected channel address 'addr-123', got %q", peer.ChannelAddress)
	}

	parts := strings.Split(peer.DisplayName, " ")
	if len(parts) != 2 {
		t.Fatalf("Expected 'Color Animal' name, got %q", peer.DisplayName)
	}

	color, animal := parts[0], parts[1]
	if !contains(colors, color) {
		t.Errorf("Unknown color %q", color)
	}
	if !contains(animals, animal) {
		t.Errorf("Unknown animal %q", animal)
	}
	if peer.ColorTag != strings.ToLower(color) {
		t.Errorf("Expected color tag %q, got %q", strings.ToLower(color), peer.ColorTag)
	}
}

func TestNewIdentityVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		seen[New("addr").DisplayName] = true
	}
	// 14 colors x 12 animals; 200 draws landing on one name would mean
	// the generator is broken, not unlucky.
	if len(seen) < 2 {
		t.Error("Expected varied display names")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
