// Command predictctl is the command line client for the model service.
package main

import (
	"fmt"
	"os"

	"github.com/oremus-labs/ol-model-service/internal/predictcli"
)

func main() {
	if err := predictcli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
