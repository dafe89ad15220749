package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		RunE: func(cmd *cobra.Command, args []string) error {
			line := "mattermorph " + strings.TrimSpace(version)
			var extra []string
			if c := strings.TrimSpace(commit); c != "" && c != "none" {
				extra = append(extra, c)
			}
			if d := strings.TrimSpace(date); d != "" && d != "unknown" {
				extra = append(extra, d)
			}
			if len(extra) > 0 {
				line += " (" + strings.Join(extra, ", ") + ")"
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
			return nil
		},
	}
}
