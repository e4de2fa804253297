package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(diagCmd)
}

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Run health probes against the portal and print a report.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		p := buildPortal(cfg)

		report := p.RunDiagnostics(cmd.Context())

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Probe", "OK", "Detail", "Elapsed"})
		for _, probe := range report.Probes {
			t.AppendRow(table.Row{probe.Name, probe.OK, probe.Detail, probe.Elapsed.Round(time.Millisecond)})
		}
		t.Render()

		fmt.Printf("healthy=%t authenticated=%t\n", report.Healthy, report.Authenticated)
		if !report.Healthy {
			os.Exit(1)
		}
	},
}
