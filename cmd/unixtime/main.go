package main

import (
	"context"
	"os"

	mcpserver "github.com/gnana997/unixtime/pkg/mcp"
)

// version is overridden with -ldflags "-X main.version=...".
var version = "0.1.0-dev"

func main() {
	mcpserver.Version = version
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
