package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/export"
)

func newExportCommand() *cobra.Command {
	var doctype, format, output, settingsPath string

	cmd := &cobra.Command{
		Use:   "export <bundle>",
		Short: "Render a record bundle as an import table for one doctype",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			if _, err := export.SourceBundle(doctype); err != nil {
				return err
			}
			settings, err := loadSettings(settingsPath)
			if err != nil {
				return err
			}
			records, err := readRecords(args[0])
			if err != nil {
				return err
			}

			docs, err := export.Render(ledger.DefaultRegistry(), records, *settings)
			if err != nil {
				return err
			}
			table, err := export.Build(docs, doctype)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output == "-" {
				output = ""
			} else if output == "" {
				output = f.FileName(doctype)
			}
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer file.Close()
				w = file
			}
			if err := export.Write(w, table, f); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s written\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&doctype, "doctype", "", "target doctype, e.g. \"Journal Entry\"")
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, \"-\" for stdout (default <doctype>.<format>)")
	cmd.Flags().StringVar(&settingsPath, "settings", "", "job settings YAML")
	_ = cmd.MarkFlagRequired("doctype")
	return cmd
}
