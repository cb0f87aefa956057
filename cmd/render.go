package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var renderCmd = &cobra.Command{
	Use:     "render",
	Aliases: []string{"r"},
	Short:   "Render the configured view tree and print the document",
	Long: `Render composes the root view from the configured layout and
template, waits for the tree to become ready, renders it into the host
document, and prints the result.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().String("layout", "", "root layout name")
	renderCmd.Flags().String("template", "", "root template name")
	renderCmd.Flags().StringP("output", "o", "", "write the document to a file instead of stdout")
	viper.BindPFlag("preview.layout", renderCmd.Flags().Lookup("layout"))
	viper.BindPFlag("preview.template", renderCmd.Flags().Lookup("template"))
}

func runRender(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	root, err := eng.rootView()
	if err != nil {
		return err
	}

	// The default collaborators resolve synchronously, so the tree is
	// ready as soon as initialization returns.
	if !root.IsReady() {
		return fmt.Errorf("view tree did not become ready; check layout %q", eng.cfg.Preview.Layout)
	}
	if d := root.Render(); !d.Done() {
		return fmt.Errorf("render did not complete; a collaborator never resolved")
	}

	markup, err := eng.document.String()
	if err != nil {
		return err
	}

	if out, _ := cmd.Flags().GetString("output"); out != "" {
		return os.WriteFile(out, []byte(markup), 0644)
	}
	fmt.Fprintln(cmd.OutOrStdout(), markup)
	return nil
}
