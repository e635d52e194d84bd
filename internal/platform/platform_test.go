package platform

import (
	"path/filepath"
	"testing"
)

func TestNewHandlePath(t *testing.T) {
	t.Parallel()
	h := NewHandle("/var/lib/autopub/sessions", Douyin, "alice")
	want := filepath.Join("/var/lib/autopub/sessions", "douyin_alice.json")
	if h.Path != want {
		t.Fatalf("Path = %q, want %q", h.Path, want)
	}
}

func TestParseArtifactName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		plat    string
		account string
		ok      bool
	}{
		{"douyin_alice.json", "douyin", "alice", true},
		{"kuaishou_team_cn.json", "kuaishou", "team_cn", true},
		{"tiktok_.json", "", "", false},
		{"douyin_login_qr.png", "", "", false},
		{"random.json", "", "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p, a, ok := ParseArtifactName(tt.name)
			if ok != tt.ok || p != tt.plat || a != tt.account {
				t.Fatalf("ParseArtifactName(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.name, p, a, ok, tt.plat, tt.account, tt.ok)
			}
		})
	}
}
