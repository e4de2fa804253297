package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(coursesCmd)
}

// newsCmd and coursesCmd exist for manual verification against a live
// session without going through an assistant.
var newsCmd = &cobra.Command{
	Use:   "news",
	Short: "Fetch and print the news listing.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		p := buildPortal(cfg)

		items, diag, err := p.News(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if len(items) == 0 {
			fmt.Fprintf(os.Stderr, "no news recovered, diagnostics: %+v\n", diag)
			return
		}
		out, _ := json.MarshalIndent(items, "", "  ")
		fmt.Println(string(out))
	},
}

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Fetch and print the course list.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		p := buildPortal(cfg)

		courses, err := p.Courses(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(courses, "", "  ")
		fmt.Println(string(out))
	},
}
