// cmd/fpgaflow/main.go
//
// Entry point for the fpgaflow CLI. It runs single flow stages (module
// instances) configured in flow.yaml and exits with the failing tool's exit
// code when an external program fails.

package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
