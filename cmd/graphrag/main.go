// Command graphrag is the CLI and MCP entry point for the GraphRAG
// retrieval core: status/query over a one-shot invocation, serve for
// the long-running MCP stdio surface.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/siherrmann/graphrag-core/cmd/graphrag/cmd"
)

func main() {
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
