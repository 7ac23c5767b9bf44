package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/daybook"
	"github.com/kislikjeka/tallymigrate/internal/platform/masters"
	"github.com/kislikjeka/tallymigrate/internal/platform/tallyxml"
)

func newProcessCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Process Tally exports into record bundles offline",
	}
	cmd.AddCommand(newProcessMastersCommand(root), newProcessDaybookCommand(root))
	return cmd
}

func newProcessMastersCommand(root *rootOptions) *cobra.Command {
	var settingsPath, output, settingsOut string

	cmd := &cobra.Command{
		Use:   "masters <export>",
		Short: "Build the chart of accounts, parties and items from a master export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(settingsPath)
			if err != nil {
				return err
			}
			export, err := loadExport(args[0], tallyxml.Load)
			if err != nil {
				return err
			}

			bundle, err := masters.NewProcessor(root.logger(cmd).Logger).Process(export, settings, nil)
			if err != nil {
				return err
			}

			records := bundle.Records()
			if err := writeRecords(cmd, output, records); err != nil {
				return err
			}
			if settingsOut != "" {
				if err := ledger.SaveSettings(settingsOut, *settings); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d records processed for %s, %d orphaned, %d duplicate accounts\n",
				len(records), settings.Company, len(bundle.Skipped.Orphans), len(bundle.Skipped.Duplicates))
			return nil
		},
	}

	cmd.Flags().StringVar(&settingsPath, "settings", "", "job settings YAML")
	cmd.Flags().StringVarP(&output, "output", "o", "", "bundle file (default stdout)")
	cmd.Flags().StringVar(&settingsOut, "settings-out", "", "write the effective settings, including the detected company")
	return cmd
}

func newProcessDaybookCommand(root *rootOptions) *cobra.Command {
	var settingsPath, mastersPath, output, invalidPath string

	cmd := &cobra.Command{
		Use:   "daybook <day-book export> <trial balance export>",
		Short: "Transform vouchers and synthesize the opening balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(settingsPath)
			if err != nil {
				return err
			}
			dayBook, err := loadExport(args[0], tallyxml.Load)
			if err != nil {
				return err
			}
			trialBalance, err := loadExport(args[1], tallyxml.LoadReport)
			if err != nil {
				return err
			}

			var masterRecords []ledger.Record
			if mastersPath != "" {
				if masterRecords, err = readRecords(mastersPath); err != nil {
					return err
				}
			}
			dir := daybook.NewBundleDirectory(masterRecords)

			log := root.logger(cmd)
			result, err := daybook.NewProcessor(dir, log.Logger).Process(cmd.Context(), dayBook, trialBalance, *settings, nil)
			if err != nil {
				return err
			}

			records := result.Records()
			if err := writeRecords(cmd, output, records); err != nil {
				return err
			}
			if invalidPath != "" {
				data, err := json.MarshalIndent(result.Invalid, "", "  ")
				if err != nil {
					return fmt.Errorf("encoding invalid vouchers: %w", err)
				}
				if err := os.WriteFile(invalidPath, data, 0o644); err != nil {
					return fmt.Errorf("writing invalid vouchers: %w", err)
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d records processed, %d invalid, %d cancelled\n",
				len(records), len(result.Invalid), result.Cancelled)
			return nil
		},
	}

	cmd.Flags().StringVar(&settingsPath, "settings", "", "job settings YAML")
	cmd.Flags().StringVar(&mastersPath, "masters", "", "processed master bundle used to resolve parties and units")
	cmd.Flags().StringVarP(&output, "output", "o", "", "bundle file (default stdout)")
	cmd.Flags().StringVar(&invalidPath, "invalid", "", "write invalid vouchers to this file")
	return cmd
}

func loadSettings(path string) (*ledger.Settings, error) {
	if path == "" {
		s := ledger.DefaultSettings()
		return &s, nil
	}
	return ledger.LoadSettings(path)
}

func loadExport(path string, load func([]byte) (*tallyxml.Node, error)) (*tallyxml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	node, err := load(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return node, nil
}

func readRecords(path string) ([]ledger.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ledger.UnmarshalRecords(data)
}

func writeRecords(cmd *cobra.Command, path string, records []ledger.Record) error {
	data, err := ledger.MarshalRecords(records)
	if err != nil {
		return err
	}
	var w io.Writer = cmd.OutOrStdout()
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}
	return nil
}
