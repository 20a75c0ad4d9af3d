package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/compose/internal/config"
	"github.com/vango-dev/compose/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		dir   string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default compose.json",
		Long: `Write compose.json with default settings into a directory.

An existing file is kept unless --force is given.`,
		// The file may not exist yet, so the root config loading is skipped.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.Exists(dir) && !force {
				return errors.New("E104").
					WithDetail(filepath.Join(dir, config.ConfigFileName)).
					WithSuggestion("Pass --force to overwrite it")
			}
			path := filepath.Join(dir, config.ConfigFileName)
			if err := config.New().SaveTo(path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to write compose.json into")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing compose.json")

	return cmd
}
