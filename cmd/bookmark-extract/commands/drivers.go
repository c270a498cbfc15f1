package commands

import (
	"os"

	"bookmark-extract/lib/browser"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(driversCmd)
}

var driversCmd = &cobra.Command{
	Use:   "drivers",
	Short: "Lists the browser drivers a session can run with.",
	Run: func(cmd *cobra.Command, args []string) {
		w := table.NewWriter()
		w.SetOutputMirror(os.Stdout)
		w.SetStyle(table.StyleRounded)
		w.AppendHeader(table.Row{"Driver", "User Agent"})
		for _, name := range browser.SupportedDrivers() {
			driver, err := browser.Lookup(name)
			if err != nil {
				continue
			}
			w.AppendRow(table.Row{driver.Name, driver.UserAgent})
		}
		w.Render()
	},
}
