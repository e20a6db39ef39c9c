package web

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var rawStatic embed.FS
var staticContent fs.FS

func init() {
	var err error
	staticContent, err = fs.Sub(rawStatic, "static")
	if err != nil {
		panic(err)
	}
}
