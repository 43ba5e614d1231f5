package watcher

import "path/filepath"

func filenameOf(path string) string {
	return filepath.Base(path)
}

func extensionOf(path string) string {
	return filepath.Ext(path)
}
