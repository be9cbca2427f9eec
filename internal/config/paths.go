package config

import (
	"os"
	"path/filepath"
)

// DBPath resolves the single SQL database file path for indexName, in
// priority order: a project-local `.qmd/` directory, the QMD_CACHE_DIR
// environment override, or a per-user cache directory (XDG_CACHE_HOME or
// its OS default).
func DBPath(indexName string) (string, error) {
	if indexName == "" {
		indexName = "default"
	}

	if dir, ok := findProjectLocal(); ok {
		return filepath.Join(dir, indexName+".db"), nil
	}

	if cacheDir := os.Getenv("QMD_CACHE_DIR"); cacheDir != "" {
		return filepath.Join(cacheDir, "qmd", indexName+".db"), nil
	}

	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "qmd", indexName+".db"), nil
	}

	userCache, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCache, "qmd", indexName+".db"), nil
}

// findProjectLocal walks up from the working directory looking for a
// `.qmd/` directory, the way a `.git` directory is located.
func findProjectLocal() (string, bool) {
	dir, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, ".qmd")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
