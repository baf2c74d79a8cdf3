package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hearthai/hearth/internal/daemon"
	"github.com/hearthai/hearth/pkg/config"
)

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "hearth.yaml", "Path to the YAML config file")
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveConfigPath string
	serveListen     string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the inference server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Listen = serveListen
	}

	d, err := daemon.NewWithConfig(cfg)
	if err != nil {
		return err
	}

	return d.Serve(context.Background())
}
