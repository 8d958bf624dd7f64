// Package client embeds the browser script that drives live sessions.
package client

import (
	"embed"
	"io/fs"
)

// ScriptName is the file served at /_live/scholarpage.js.
const ScriptName = "scholarpage.js"

//go:embed src/*.js
var assets embed.FS

// Assets returns the embedded filesystem containing JavaScript files.
func Assets() fs.FS {
	fsys, err := fs.Sub(assets, "src")
	if err != nil {
		panic(err)
	}
	return fsys
}

// Script returns the live client.
func Script() []byte {
	return MustGetFile(ScriptName)
}

// MustGetFile returns the contents of an embedded file.
// Panics if the file doesn't exist.
func MustGetFile(name string) []byte {
	data, err := assets.ReadFile("src/" + name)
	if err != nil {
		panic(err)
	}
	return data
}

// FileNames returns the names of all embedded files.
func FileNames() []string {
	entries, err := assets.ReadDir("src")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names
}
