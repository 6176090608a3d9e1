package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rmax-ai/loadsim/pkg/client"
	"github.com/rmax-ai/loadsim/pkg/mcp"
)

var version = "dev"

// stdout carries the MCP protocol, so diagnostics go to stderr only.
func main() {
	apiURL := flag.String("api", client.DefaultEndpoint, "Base URL of loadsimd")
	flag.Parse()
	if v := os.Getenv("LOADSIM_API"); v != "" && !isFlagSet("api") {
		*apiURL = v
	}

	if err := mcp.NewServer(*apiURL, version).Serve(); err != nil {
		fmt.Fprintf(os.Stderr, "loadsim-mcp: %v\n", err)
		os.Exit(1)
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
