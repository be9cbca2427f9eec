package ingest

import (
	"path/filepath"
	"strings"
)

// deriveTitle returns the first ATX heading if
// present, else the basename without extension.
func deriveTitle(relPath, body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			heading := strings.TrimLeft(line, "#")
			heading = strings.TrimSpace(heading)
			if heading != "" {
				return heading
			}
		}
	}
	base := filepath.Base(relPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
