// nolint
package cmd

import (
	"fmt"
	"strings"

	"github.com/lualive/livepatch/history"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

const previewLength = 60

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history <file>",
	Short: "Show the recorded versions of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename, err := homedir.Expand(args[0])
		if err != nil {
			return err
		}
		versions, err := history.Load(filename)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		show, _ := cmd.Flags().GetInt("show")
		stats, _ := cmd.Flags().GetBool("stats")
		switch {
		case cmd.Flags().Changed("show"):
			if show < 0 || show >= len(versions) {
				return fmt.Errorf("%v has no version %d (%d recorded)", filename, show, len(versions))
			}
			fmt.Fprint(out, versions[show])
		case stats:
			fmt.Fprintln(out, history.Summarize(versions))
		default:
			for i, v := range versions {
				fmt.Fprintf(out, "%d\t%d bytes\t%s\n", i, len(v), preview(v))
			}
		}
		return nil
	},
}

func preview(v string) string {
	if i := strings.IndexByte(v, '\n'); i >= 0 {
		v = v[:i]
	}
	if r := []rune(v); len(r) > previewLength {
		v = string(r[:previewLength]) + "..."
	}
	return v
}

func init() {
	RootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("show", "n", 0, "Print version N verbatim")
	historyCmd.Flags().BoolP("stats", "s", false, "Print size statistics of the recorded versions")
}
