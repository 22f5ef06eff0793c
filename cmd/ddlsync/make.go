package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddlsync/ddlsync"
)

var makeCmd = &cobra.Command{
	Use:     "make",
	GroupID: "write",
	Short:   "Write a migration file from schema drift",
	Long: `Diff the recorded migration history against the declarative schema
file and, if anything changed, write a new migration file capturing
the difference.

Renames and destructive changes (dropped tables, dropped columns)
prompt for confirmation unless --yes is given or the matching policy
is configured to proceed, skip, or require-manual automatically.

Examples:
  ddlsync make
  ddlsync make --yes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := engine.Make()
		if err != nil {
			var manual *ddlsync.ManualMigrationRequired
			if errors.As(err, &manual) {
				fmt.Println(styleWarn.Render("manual migration required:"))
				for _, reason := range manual.Reasons {
					fmt.Printf("  - %s\n", reason)
				}
				if result != nil && result.Written != nil {
					fmt.Printf("%s %s\n", styleOK.Render("wrote"), result.Written.Path)
				}
				return nil
			}
			return err
		}
		if result.Written == nil {
			fmt.Println(styleDim.Render("no schema changes, nothing written"))
			return nil
		}
		fmt.Printf("%s %s\n", styleOK.Render("wrote"), result.Written.Path)
		return nil
	},
}
