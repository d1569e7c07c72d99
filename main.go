// ABOUTME: Entry point for the courier CLI
// ABOUTME: Delegates to the cobra root command

package main

import (
	"fmt"
	"os"

	"github.com/syntlex/courier/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
