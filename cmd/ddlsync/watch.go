package main

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "views",
	Short:   "Run make on every schema file save",
	Long: `Watch the declarative schema file and run make automatically each
time it's saved, for a tight edit-diff loop during development.

Examples:
  ddlsync watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		defer watcher.Close()

		if err := watcher.Add(cfg.SchemaPath); err != nil {
			return fmt.Errorf("watch: watching %s: %w", cfg.SchemaPath, err)
		}

		fmt.Println(styleDim.Render("watching " + cfg.SchemaPath + ", ctrl-c to stop"))
		runMake := func() {
			result, err := engine.Make()
			if err != nil {
				fmt.Println(styleError.Render(err.Error()))
				return
			}
			if result.Written == nil {
				fmt.Println(styleDim.Render("no schema changes"))
				return
			}
			fmt.Printf("%s %s\n", styleOK.Render("wrote"), result.Written.Path)
		}

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					runMake()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Println(styleError.Render(err.Error()))
			}
		}
	},
}
