package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ddlsync/ddlsync"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate [target]",
	GroupID: "write",
	Short:   "Apply migrations to the live database",
	Args:    cobra.MaximumNArgs(1),
	Long: `Bring the live database to target, which is either "latest" (the
default), "zero" (undo everything), or the id of a specific migration
file. Migrate walks the migration history and the database's applied
store to their common prefix, undoes whatever diverges after it, then
redoes the target's remaining entries inside one transaction, verifying
integrity once it commits.

Examples:
  ddlsync migrate
  ddlsync migrate zero
  ddlsync migrate 0003`,
	RunE: func(cmd *cobra.Command, args []string) error {
		target := ddlsync.TargetLatest
		if len(args) == 1 {
			target = args[0]
		}

		result, err := engine.Migrate(target)
		if err != nil {
			var rolledBack *ddlsync.RolledBackTransaction
			var integrity *ddlsync.IntegrityError
			switch {
			case errors.As(err, &rolledBack):
				return fmt.Errorf("migration rolled back, database unchanged: %w", rolledBack.Cause)
			case errors.As(err, &integrity):
				return fmt.Errorf("committed but failed integrity check, re-run migrate to recover: %w", integrity.Cause)
			default:
				return err
			}
		}

		if result.NoOp {
			fmt.Println(styleDim.Render("already at " + target))
			return nil
		}
		for _, id := range result.Undone {
			fmt.Printf("%s %s\n", styleWarn.Render("undid"), id)
		}
		for _, id := range result.Redone {
			fmt.Printf("%s %s\n", styleOK.Render("applied"), id)
		}
		return nil
	},
}
