package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kvizmajstor/internal/importer"
)

// NewImportCmd validates a question spreadsheet without touching any quiz.
// Authors can check their file before uploading it.
func NewImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Validate a question spreadsheet and report what would be imported",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()

			report, err := importer.Parse(file)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "valid questions: %d\n", len(report.Questions))
			fmt.Fprintf(cmd.OutOrStdout(), "skipped rows:    %d\n", report.Skipped)
			for _, warning := range report.Warnings {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", warning)
			}
			return nil
		},
	}
}

// NewTemplateCmd writes the import template spreadsheet.
func NewTemplateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "template <out.xlsx>",
		Short: "Write the question import template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := importer.WriteTemplate(out); err != nil {
				out.Close()
				return err
			}
			return out.Close()
		},
	}
}
