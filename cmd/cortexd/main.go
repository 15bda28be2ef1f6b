// Package main is the single-binary entrypoint for cortexd.
package main

import "github.com/cortexd/cortexd/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
