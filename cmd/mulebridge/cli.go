// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/autobrr/mulebridge/internal/buildinfo"
	"github.com/autobrr/mulebridge/internal/config"
	"github.com/autobrr/mulebridge/internal/normalize"
	"github.com/autobrr/mulebridge/internal/services/emulex"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func loadService(configDir string) (*emulex.Service, error) {
	cfg, err := config.New(configDir, buildinfo.Version)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize configuration")
	}
	cfg.ApplyLogConfig()
	return emulex.NewService(cfg.Config), nil
}

func RunSearchCommand() *cobra.Command {
	var (
		configDir string
		output    string
		season    int
		episode   int
		year      int
	)

	command := &cobra.Command{
		Use:   "search [term]",
		Short: "Run a search against emulex and print normalized releases",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := loadService(configDir)
			if err != nil {
				return err
			}

			query := normalize.SearchQuery{}
			if len(args) > 0 {
				query.Term = args[0]
			}
			if cmd.Flags().Changed("season") {
				query.Season = &season
			}
			if cmd.Flags().Changed("ep") {
				query.Episode = &episode
			}
			if cmd.Flags().Changed("year") {
				query.Year = &year
			}

			resp, err := service.SearchWithMetadata(cmd.Context(), query, true)
			if err != nil {
				return errors.Wrap(err, "search failed")
			}

			return writeReleases(cmd.OutOrStdout(), output, resp.Results)
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory or file path (defaults to OS-specific location)")
	command.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")
	command.Flags().IntVar(&season, "season", 0, "season number")
	command.Flags().IntVar(&episode, "ep", 0, "episode number")
	command.Flags().IntVar(&year, "year", 0, "release year")

	return command
}

func RunStatusCommand() *cobra.Command {
	var configDir, output string

	command := &cobra.Command{
		Use:   "status",
		Short: "Query the emulex status endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := loadService(configDir)
			if err != nil {
				return err
			}

			releases, err := service.Status(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "status check failed")
			}
			if len(releases) == 0 && output == outputTable {
				cmd.Println("emulex reachable, no status releases")
				return nil
			}

			return writeReleases(cmd.OutOrStdout(), output, releases)
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory or file path (defaults to OS-specific location)")
	command.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, json or yaml")

	return command
}

func RunTestConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "test-config",
		Short: "Validate the API key and run the configured test search",
		RunE: func(cmd *cobra.Command, args []string) error {
			service, err := loadService(configDir)
			if err != nil {
				return err
			}

			if err := service.Validate(cmd.Context()); err != nil {
				return err
			}

			cmd.Println("Configuration OK")
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory or file path (defaults to OS-specific location)")

	return command
}

func RunCanonicalizeCommand() *cobra.Command {
	var (
		heading string
		year    int
	)

	command := &cobra.Command{
		Use:   "canonicalize [fragment...]",
		Short: "Rewrite episode fragments into scene-style codes",
		Long: `Rewrite episode fragments into scene-style codes.

Each argument is an episode fragment such as "2x01 al 2x03". With --heading the
catalog series heading is combined into a full scene title.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(args))
			for _, fragment := range args {
				code := normalize.CanonicalEpisode(fragment)
				row := []string{fragment, code, strconv.Itoa(normalize.EpisodeCount(code))}
				if heading != "" {
					row = append(row, normalize.SceneTitle(heading, fragment, normalize.SceneOptions{Year: year}))
				}
				rows = append(rows, row)
			}

			headers := []string{"Fragment", "Code", "Episodes"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignRight}
			if heading != "" {
				headers = append(headers, "Title")
				aligns = append(aligns, alignLeft)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
			return nil
		},
	}

	command.Flags().StringVar(&heading, "heading", "", "catalog series heading, e.g. \"Show - 2ª Temporada [720p]\"")
	command.Flags().IntVar(&year, "year", 0, "year to include in the scene title")

	return command
}

func writeReleases(w io.Writer, format string, releases []emulex.Release) error {
	switch strings.ToLower(format) {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(releases)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(releases)
	case outputTable, "":
		_, err := fmt.Fprintln(w, renderTable(
			[]string{"Title", "Category", "Size", "Seeders", "Peers", "Hash link"},
			releaseRows(releases),
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
		))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func releaseRows(releases []emulex.Release) [][]string {
	rows := make([][]string, 0, len(releases))
	for _, r := range releases {
		rows = append(rows, []string{
			r.Title,
			r.Category.String(),
			humanSize(r.Size),
			strconv.Itoa(r.Seeders),
			strconv.Itoa(r.Peers),
			r.DetailsURL,
		})
	}
	return rows
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
