package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/famomatic/vodfetch/client"
)

func newDownloadCmd(a *app) *cobra.Command {
	var sel client.Selector
	cmd := &cobra.Command{
		Use:   "download [channel:]media_id",
		Short: "Download one episode and report progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channelID, mediaID, err := client.ParseMediaRef(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			h, err := a.client.Download(ctx, channelID, mediaID, sel)
			if err != nil {
				return err
			}
			final, err := client.Follow(ctx, h.Events(), progressPrinter(a.logger))
			if err != nil {
				return err
			}
			if final.Reason != "" {
				return fmt.Errorf("download failed: %s", final.Reason)
			}
			fmt.Fprintln(cmd.OutOrStdout(), final.LocalPath)
			return nil
		},
	}
	cmd.Flags().IntVarP(&sel.Episode, "episode", "e", 1, "episode number")
	cmd.Flags().IntVarP(&sel.Season, "season", "s", 1, "season number (scrape channels)")
	return cmd
}

func newBatchCmd(a *app) *cobra.Command {
	var start, count int
	cmd := &cobra.Command{
		Use:   "batch [channel:]media_id",
		Short: "Download consecutive episodes one after another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channelID, mediaID, err := client.ParseMediaRef(args[0])
			if err != nil {
				return err
			}
			printer := progressPrinter(a.logger)
			results, err := a.client.BatchDownload(cmd.Context(), channelID, mediaID, start, count, func(ep int, u client.Update) {
				printer(u)
			})
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "episode %d\tfailed\t%v\n", r.Episode, r.Err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "episode %d\tdone\t%s\n", r.Episode, r.LocalPath)
			}
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d episodes failed", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&start, "start", 1, "first episode number")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of episodes")
	return cmd
}

func newMetadataCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata [channel:]media_id",
		Short: "Print media metadata as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channelID, mediaID, err := client.ParseMediaRef(args[0])
			if err != nil {
				return err
			}
			meta, err := a.client.GetMetadata(cmd.Context(), channelID, mediaID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), meta)
		},
	}
}

func newSearchCmd(a *app) *cobra.Command {
	var req client.SearchRequest
	cmd := &cobra.Command{
		Use:   "search keyword...",
		Short: "Search a channel by keyword",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Keyword = strings.Join(args, " ")
			res, err := a.client.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&req.Channel, "channel", "", "channel id (default channel when empty)")
	cmd.Flags().IntVarP(&req.Page, "page", "p", 1, "result page")
	cmd.Flags().IntVar(&req.PageSize, "page-size", 0, "truncate the page to this many items")
	return cmd
}

func newPlaylistCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "playlist [channel:]media_id",
		Short: "List the episodes of a media item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			channelID, mediaID, err := client.ParseMediaRef(args[0])
			if err != nil {
				return err
			}
			pl, err := a.client.GetPlaylist(cmd.Context(), channelID, mediaID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), pl)
		},
	}
}

func newChannelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List configured channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), a.client.Channels())
		},
	}
}

func newRecordsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "records",
		Short: "List download records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := a.client.Records(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), recs)
		},
	}
}

func progressPrinter(logger *log.Logger) func(client.Update) {
	return func(u client.Update) {
		switch {
		case u.TotalSegments > 0:
			logger.Info(string(u.Kind), "segments", u.TotalSegments)
		case u.Message != "":
			logger.Info(string(u.Kind), "msg", u.Message)
		case u.LocalPath != "":
			logger.Info(string(u.Kind), "path", u.LocalPath)
		case u.Reason != "":
			logger.Error(string(u.Kind), "reason", u.Reason)
		default:
			logger.Info(string(u.Kind))
		}
	}
}
