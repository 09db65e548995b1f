// Command xactod runs the transactional key-value store server.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"xacto/pkg/mvcc"
	"xacto/pkg/server"
	"xacto/pkg/xlog"
	"xacto/pkg/xmetrics"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "xactod",
	Short: "xactod serves the transactional key-value store protocol over TCP",
	RunE:  run,
}

func init() {
	rootCmd.Flags().IntP("port", "p", 0, "TCP port to listen on (required)")
	rootCmd.MarkFlagRequired("port")

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Address to serve Prometheus metrics on (empty disables it)")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	xlog.Init(xlog.Config{
		Level: xlog.Level(level),
		JSON:  jsonOutput,
	})
}

func run(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	mgr := mvcc.NewManager()
	store := mvcc.NewStore(mgr)
	srv := server.New(mgr, store)

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", xmetrics.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				xlog.Errorf("metrics server stopped", err)
			}
		}()
		xlog.WithComponent("main").Info().Str("addr", metricsAddr).Msg("metrics endpoint listening")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(fmt.Sprintf(":%d", port))
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		xlog.WithComponent("main").Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	return terminate(srv)
}

// terminate implements the clean-shutdown sequence: stop accepting new
// connections, close every registered client socket (unblocking their
// goroutines from pending I/O), and wait for them all to exit before
// returning.
func terminate(srv *server.Server) error {
	if err := srv.Shutdown(); err != nil {
		return err
	}

	reg := srv.Registry()
	xlog.WithComponent("main").Debug().Msg("waiting for service goroutines to terminate")
	reg.ShutdownAll()
	reg.WaitForEmpty()
	xlog.WithComponent("main").Info().Msg("xactod terminating")
	return nil
}
