// Codegraph - dependency graph explorer for source trees.
//
// Codegraph scans JavaScript, TypeScript, and Python workspaces into a
// folder/file/function graph, serving it to renderers over HTTP and to
// assistants over MCP.
package main

import (
	"fmt"
	"os"

	"github.com/codegraph-dev/codegraph/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
