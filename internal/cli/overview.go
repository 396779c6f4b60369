package cli

import (
	"fmt"
	"os"
	"regexp"

	"github.com/spf13/cobra"
)

var overviewCmd = &cobra.Command{
	Use:   "overview [commit-range]",
	Short: "Show the per-file review table",
	Long: `Show every touched file with its reviewable line count and how much
of it is resolved. With --title or --body-file, issue keys found in the
text are printed as links when jira.base_url is configured.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOverview,
}

func init() {
	overviewCmd.Flags().String("title", "", "change title to scan for issue keys")
	overviewCmd.Flags().String("body-file", "", "file holding the change description")
	rootCmd.AddCommand(overviewCmd)
}

// issueKeyRe matches Jira-style issue keys such as AUTH-1234.
var issueKeyRe = regexp.MustCompile(`[A-Z][A-Z0-9]+-\d+`)

func runOverview(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	title, _ := cmd.Flags().GetString("title")
	bodyFile, _ := cmd.Flags().GetString("body-file")
	text := title
	if bodyFile != "" {
		data, err := os.ReadFile(bodyFile)
		if err != nil {
			return fmt.Errorf("reading body file: %w", err)
		}
		text += "\n" + string(data)
	}
	if keys := issueKeys(text); len(keys) > 0 {
		for _, k := range keys {
			if cfg.Jira.BaseURL != "" {
				fmt.Fprintf(ui.Out, "issue: %s/%s\n", cfg.Jira.BaseURL, k)
			} else {
				fmt.Fprintf(ui.Out, "issue: %s\n", k)
			}
		}
		fmt.Fprintln(ui.Out)
	}

	return ui.Overview(s.Queue())
}

// issueKeys extracts unique issue keys in first-seen order.
func issueKeys(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range issueKeyRe.FindAllString(text, -1) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
