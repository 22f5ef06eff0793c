// Command ddlsync drives the declarative SQLite schema migration
// engine from the shell: make writes migration files from schema
// drift, migrate applies them, status reports where things stand.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError.Render(err.Error()))
		os.Exit(1)
	}
}
