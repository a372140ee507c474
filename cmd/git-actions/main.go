// Command git-actions runs the webhook-to-action pipeline service:
// load configuration, build the dispatch table, and serve webhook
// deliveries until signalled to shut down.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/acfabro/git-actions/internal/action"
	"github.com/acfabro/git-actions/internal/actionlog"
	"github.com/acfabro/git-actions/internal/config"
	"github.com/acfabro/git-actions/internal/dispatcher"
	"github.com/acfabro/git-actions/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configPath string
var actionLogPath string

var rootCmd = &cobra.Command{
	Use:   "git-actions",
	Short: "Git hosting webhook-to-action pipeline",
	Run:   run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "server.yaml", "Path to the Server config document")
	rootCmd.Flags().StringVar(&actionLogPath, "action-log", "action.log", "Path to the action outcome log file")

	if err := viper.BindPFlag("config", rootCmd.Flags().Lookup("config")); err != nil {
		log.Printf("failed to bind config flag: %v", err)
	}
	if err := viper.BindPFlag("action-log", rootCmd.Flags().Lookup("action-log")); err != nil {
		log.Printf("failed to bind action-log flag: %v", err)
	}
	viper.SetEnvPrefix("GIT_ACTIONS")
	viper.AutomaticEnv()
}

func run(cmd *cobra.Command, args []string) {
	path := viper.GetString("config")
	if path == "" {
		path = configPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Printf("config: failed to load %s: %v", path, err)
		os.Exit(1)
	}

	logPath := viper.GetString("action-log")
	if logPath == "" {
		logPath = actionLogPath
	}
	recorder, err := actionlog.NewRecorder(logPath)
	if err != nil {
		log.Printf("actionlog: failed to open %s: %v", logPath, err)
		os.Exit(2)
	}

	executor := action.NewExecutor(recorder)
	d := dispatcher.New(cfg, executor, prometheus.DefaultRegisterer)
	srv := server.New(cfg, d)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Printf("git-actions: listening on %s", cfg.ListenAddress)
	if err := srv.Start(ctx, cfg.ListenAddress); err != nil {
		log.Printf("server: %v", err)
		os.Exit(2)
	}
	log.Printf("git-actions: shutdown complete")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
