// firectl is the operator CLI for the fire danger service: compute a
// rating locally, run a query against a running server, or invalidate a
// cache entry.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serverAddr string

func main() {
	root := &cobra.Command{
		Use:   "firectl",
		Short: "Operate the fire danger rating service",
	}
	root.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "base URL of the fire danger service")

	root.AddCommand(newCalcCmd(), newQueryCmd(), newInvalidateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
