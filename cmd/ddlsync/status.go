package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "views",
	Aliases: []string{"stat"},
	Short:   "Show the current migration position and any drift",
	Long: `Report which migration the database is currently at, which
registered migrations have not yet been applied or have disappeared
from disk, and whether the live database or the declarative schema
file have drifted from the migration history since the last migrate.

Examples:
  ddlsync status
  ddlsync stat`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := engine.Status()
		if err != nil {
			return err
		}

		fmt.Println(styleHeading.Render("Migration status"))
		fmt.Printf("  current: %s\n", result.CurrentID)
		if result.CurrentName != "" {
			fmt.Printf("  name:    %s\n", result.CurrentName)
		}

		if len(result.MissingMigrations) > 0 {
			fmt.Println(styleWarn.Render("  missing (not yet applied):"))
			for _, id := range result.MissingMigrations {
				fmt.Printf("    - %s\n", id)
			}
		}
		if len(result.ExtraMigrations) > 0 {
			fmt.Println(styleWarn.Render("  extra (applied but no longer on disk):"))
			for _, id := range result.ExtraMigrations {
				fmt.Printf("    - %s\n", id)
			}
		}

		if result.SchemaDiffError != "" {
			fmt.Println(styleError.Render("  drift check failed: " + result.SchemaDiffError))
		} else {
			reportDrift("schema file vs. migration history", result.HasSchemaChanges)
			reportDrift("live database vs. migration history", result.HasTamperedData)
		}

		return nil
	},
}

func reportDrift(label string, drifted bool) {
	if drifted {
		fmt.Printf("  %s: %s\n", styleWarn.Render("drift"), label)
		return
	}
	fmt.Printf("  %s: %s\n", styleOK.Render("clean"), label)
}
