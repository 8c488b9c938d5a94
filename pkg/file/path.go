package file

import (
	"path/filepath"
	"strings"
)

// Stem is the base name of path without its extension
func Stem(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// Derive names an artifact after path: its stem, then suffix, then ext.
// An empty ext keeps the extension of path.
//
//	Derive("/in/clip.mp4", "_translate", ".srt") == "clip_translate.srt"
//	Derive("/in/clip.mp4", "_subtitled", "")     == "clip_subtitled.mp4"
func Derive(path, suffix, ext string) string {
	if path == "" {
		return ""
	}
	if ext == "" {
		ext = filepath.Ext(filepath.Base(path))
		if ext == filepath.Base(path) {
			ext = ""
		}
	} else if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return Stem(path) + suffix + ext
}
