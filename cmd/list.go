package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List registered view types",
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}

	names := eng.registry.TypeNames()
	sort.Strings(names)

	title := cases.Title(language.English)
	fmt.Fprintf(cmd.OutOrStdout(), "Registered view types (%d):\n", len(names))
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", title.String(name))
	}
	return nil
}
