package classify

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify_Taxonomy(t *testing.T) {
	cases := []struct {
		msg  string
		want Kind
	}{
		{"request timeout after 30s", Timeout},
		{"Zeitüberschreitung beim Lesen", Timeout},
		{"network unreachable", Network},
		{"Netzwerkfehler", Network},
		{"connection refused", Network},
		{"Verbindung abgebrochen", Network},
		{"permission denied", Permission},
		{"keine Berechtigung", Permission},
		{"access denied by policy", Permission},
		{"Zugriff verweigert", Permission},
		{"invalid format", Format},
		{"cannot parse payload", Format},
		{"bad encoding", Format},
		{"ungültige Codierung", Format},
		{"something else went wrong", Processing},
		{"empty file payload received", Processing},
	}
	for _, tc := range cases {
		if got := Classify(errors.New(tc.msg)); got != tc.want {
			t.Errorf("Classify(%q) = %s, want %s", tc.msg, got, tc.want)
		}
	}
}

func TestClassify_PriorityOrder(t *testing.T) {
	// Timeout wins over network when both terms appear.
	err := errors.New("network timeout")
	if got := Classify(err); got != Timeout {
		t.Errorf("expected TIMEOUT, got %s", got)
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	if got := Classify(errors.New("TIMEOUT waiting for upload")); got != Timeout {
		t.Errorf("expected TIMEOUT, got %s", got)
	}
}

func TestClassify_Nil(t *testing.T) {
	if got := Classify(nil); got != Processing {
		t.Errorf("expected PROCESSING for nil, got %s", got)
	}
}

func TestClassify_Wrapped(t *testing.T) {
	err := fmt.Errorf("upload failed: %w", errors.New("connection reset by peer"))
	if got := Classify(err); got != Network {
		t.Errorf("expected NETWORK, got %s", got)
	}
}
