package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"refbind/internal/mode"
	"refbind/internal/ui"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the binding decision table of a mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		modeFlag, err := cmd.Flags().GetString("mode")
		if err != nil {
			return fmt.Errorf("failed to get mode flag: %w", err)
		}
		formatFlag, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("failed to get format flag: %w", err)
		}
		m, err := mode.Parse(modeFlag)
		if err != nil {
			return err
		}

		switch strings.ToLower(formatFlag) {
		case "pretty":
			color, err := useColor(cmd)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.RenderTable(m, color))
			return nil
		case "json":
			rows := ui.TableRows(m)
			headers := ui.TableHeaders()
			out := make([]map[string]string, 0, len(rows))
			for _, r := range rows {
				entry := make(map[string]string, len(headers))
				for i, h := range headers {
					entry[h] = r[i]
				}
				out = append(out, entry)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		return fmt.Errorf("unsupported format %q (must be pretty or json)", formatFlag)
	},
}

func init() {
	tableCmd.Flags().String("mode", "proposed", "binding mode (legacy|proposed)")
	tableCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}
