package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/xc-results-crawler/internal/logging"
	"github.com/JakeFAU/xc-results-crawler/internal/normalize"
	"github.com/JakeFAU/xc-results-crawler/internal/parser"
	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

func newParseCmd() *cobra.Command {
	var (
		meetID int64
		name   string
		date   string
		state  string
		debug  bool
	)
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a saved meet results page and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read meet page: %w", err)
			}
			summary := xc.MeetSummary{SourceID: meetID, Name: name, State: state}
			if summary.Name == "" {
				summary.Name = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}
			if date != "" {
				d, ok := normalize.ParseListingDate(date)
				if !ok {
					return fmt.Errorf("invalid --date %q: want M/D/YY", date)
				}
				summary.Date = d
			}

			level := "warn"
			if debug {
				level = "debug"
			}
			logger, err := logging.New(false, level)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			meet, err := parser.New(logger).Parse(summary, body)
			if err != nil {
				logger.Error("parse failed", zap.String("file", args[0]), zap.Error(err))
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(meet)
		},
	}
	cmd.Flags().Int64Var(&meetID, "meet-id", 0, "source id recorded on the parsed meet")
	cmd.Flags().StringVar(&name, "name", "", "meet name (defaults to the file name)")
	cmd.Flags().StringVar(&date, "date", "", "meet date as M/D/YY")
	cmd.Flags().StringVar(&state, "state", "", "meet state")
	cmd.Flags().BoolVar(&debug, "debug", false, "log parser warnings at debug level")
	return cmd
}
