// Package platform names the supported publishing targets and resolves the
// on-disk location of their persisted session artifacts.
package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	Douyin   = "douyin"
	TikTok   = "tiktok"
	Tencent  = "tencent"
	Kuaishou = "kuaishou"
)

var ErrUnsupported = errors.New("unsupported platform")

// All lists the supported platform identifiers in registration order.
func All() []string {
	return []string{Douyin, TikTok, Tencent, Kuaishou}
}

// Handle references the persisted authentication artifact for one
// (platform, account) pair. The artifact itself is owned by the automation
// backend; the core only passes the path around.
type Handle struct {
	Platform string
	Account  string
	Path     string
}

// NewHandle resolves the deterministic artifact path under dir:
// <dir>/<platform>_<account>.json
func NewHandle(dir, platform, account string) Handle {
	return Handle{
		Platform: platform,
		Account:  account,
		Path:     filepath.Join(dir, fmt.Sprintf("%s_%s.json", platform, account)),
	}
}

// EnsureDir creates the artifact directory lazily (first login wins).
func (h Handle) EnsureDir() error {
	return os.MkdirAll(filepath.Dir(h.Path), 0o755)
}

// Exists reports whether a session artifact has been persisted yet.
func (h Handle) Exists() bool {
	_, err := os.Stat(h.Path)
	return err == nil
}

// QRImagePath is where the automation backend drops the login QR screenshot
// for a platform. The escalation pipeline uploads this file.
func QRImagePath(dir, platform string) string {
	return filepath.Join(dir, platform+"_login_qr.png")
}

// ParseArtifactName splits an artifact file name back into its
// (platform, account) pair. Returns ok=false for files that do not follow the
// <platform>_<account>.json layout.
func ParseArtifactName(name string) (plat, account string, ok bool) {
	base := strings.TrimSuffix(name, ".json")
	if base == name {
		return "", "", false
	}
	for _, p := range All() {
		if strings.HasPrefix(base, p+"_") {
			acc := strings.TrimPrefix(base, p+"_")
			if acc == "" {
				return "", "", false
			}
			return p, acc, true
		}
	}
	return "", "", false
}
