package main

import (
	"embed"
	"io/fs"
)

//go:embed all:frontend
var frontendFiles embed.FS

//go:embed skins
var skinFiles embed.FS

// getFrontendFS returns a sub-filesystem rooted at the "frontend" directory.
func getFrontendFS() fs.FS {
	return sub(frontendFiles, "frontend")
}

// getSkinsFS returns the built-in skins, one directory each.
func getSkinsFS() fs.FS {
	return sub(skinFiles, "skins")
}

func sub(fsys fs.FS, dir string) fs.FS {
	s, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return s
}
