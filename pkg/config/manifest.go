package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultManifest is the application shell pre-warmed at install time.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/manifest.json",
	// critical pre-sized images
	"/optimized/profilepic-400.webp",
	"/optimized/hardware-400.webp",
	"/optimized/profilepic-placeholder.webp",
	"/optimized/hardware-placeholder.webp",
	// icons
	"/esp32.svg",
	"/linux.svg",
}

// manifestFile is the on-disk manifest format.
type manifestFile struct {
	Assets []string `yaml:"assets"`
}

// LoadManifest returns the static asset manifest. An empty path yields
// DefaultManifest.
func LoadManifest(path string) ([]string, error) {
	if path == "" {
		return append([]string(nil), DefaultManifest...), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) ([]string, error) {
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := ValidateManifest(mf.Assets); err != nil {
		return nil, err
	}
	return mf.Assets, nil
}

// ValidateManifest requires a non-empty list of unique absolute paths.
func ValidateManifest(assets []string) error {
	if len(assets) == 0 {
		return fmt.Errorf("manifest has no assets")
	}
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		if !strings.HasPrefix(a, "/") {
			return fmt.Errorf("manifest asset %q is not an absolute path", a)
		}
		if _, dup := seen[a]; dup {
			return fmt.Errorf("manifest asset %q listed twice", a)
		}
		seen[a] = struct{}{}
	}
	return nil
}
