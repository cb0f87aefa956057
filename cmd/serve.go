package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/viewtree/internal/server"
	"github.com/conneroisu/viewtree/internal/templates"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve a live preview of the composed view tree",
	Long: `Serve renders the configured view tree into the host document,
serves it over HTTP, and re-renders plus reloads connected browsers when a
template file changes.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to serve on")
	serveCmd.Flags().String("host", "localhost", "host to bind to")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	eng, err := buildEngine()
	if err != nil {
		return err
	}
	root, err := eng.rootView()
	if err != nil {
		return err
	}
	if !root.IsReady() {
		return fmt.Errorf("view tree did not become ready; check layout %q", eng.cfg.Preview.Layout)
	}
	root.Render()

	srv := server.NewPreviewServer(root, eng.document, eng.logger)

	watcher, err := templates.NewWatcher(eng.store, srv.OnTemplateChange)
	if err != nil {
		eng.logger.Warn(cmd.Context(), err, "template watching disabled")
	} else {
		defer watcher.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", eng.cfg.Server.Host, eng.cfg.Server.Port)
	eng.logger.Info(ctx, "preview server listening", "addr", addr)
	return srv.ListenAndServe(ctx, addr)
}
