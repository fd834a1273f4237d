package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/famomatic/vodfetch/client"
	"github.com/famomatic/vodfetch/internal/config"
)

// app carries what PersistentPreRunE builds for the subcommands.
type app struct {
	configFile string
	logLevel   string

	settings *config.Config
	logger   *log.Logger
	client   *client.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "vodfetch",
		Short:         "Fetch metadata and episodes from video-hosting channels",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.client != nil {
				return a.client.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file path (default ./vodfetch.toml or /etc/vodfetch/vodfetch.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug|info|warn|error), overrides log_level")

	root.AddCommand(
		newDownloadCmd(a),
		newBatchCmd(a),
		newMetadataCmd(a),
		newSearchCmd(a),
		newPlaylistCmd(a),
		newChannelsCmd(a),
		newRecordsCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	settings, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	level := settings.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	logger, err := client.NewLogger(cmd.ErrOrStderr(), level)
	if err != nil {
		return err
	}
	ctx := log.WithContext(cmd.Context(), logger)
	cmd.SetContext(ctx)

	c, err := client.Open(ctx, settings, logger)
	if err != nil {
		return err
	}
	a.settings = settings
	a.logger = logger
	a.client = c
	logger.Debug("config loaded", "download_dir", settings.DownloadDir, "channels", len(c.Channels()))
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
