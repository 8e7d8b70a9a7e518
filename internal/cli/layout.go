package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pipeline-acceptance/internal/config"
	"pipeline-acceptance/internal/fixture"
)

type layoutOutput struct {
	Identifier         string `json:"identifier"`
	TestRoot           string `json:"test_root"`
	TestSrc            string `json:"test_src"`
	TestOut            string `json:"test_out"`
	WarehousePath      string `json:"warehouse_path"`
	DatabaseName       string `json:"database"`
	ImportDatabaseName string `json:"import_database"`
	ExportDatabaseName string `json:"export_database"`
	Override           string `json:"override"`
}

// NewLayoutCommand prints where a run for ACCEPTANCE_TEST_CONFIG will write.
func NewLayoutCommand(rootOpts *RootOptions) *cobra.Command {
	var testName string

	cmd := &cobra.Command{
		Use:           "layout",
		Short:         "Print the isolated locations and task override of a run",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAcceptance()
			if err != nil {
				return err
			}
			h, err := fixture.New(cfg, testName)
			if err != nil {
				return err
			}
			override, err := fixture.RenderOverride(h.TaskConfigOverride())
			if err != nil {
				return err
			}

			out := layoutOutput{
				Identifier:         h.Identifier,
				TestRoot:           h.TestRoot,
				TestSrc:            h.TestSrc,
				TestOut:            h.TestOut,
				WarehousePath:      h.WarehousePath,
				DatabaseName:       h.DatabaseName,
				ImportDatabaseName: h.ImportDatabaseName,
				ExportDatabaseName: h.ExportDatabaseName,
				Override:           string(override),
			}
			w := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprintf(w, "identifier: %s\ntest root:  %s\ndatabase:   %s\n\n%s", out.Identifier, out.TestRoot, out.DatabaseName, out.Override)
			return nil
		},
	}

	cmd.Flags().StringVar(&testName, "test-name", "StudentEngagementAcceptanceTest", "test name used in the run root")
	return cmd
}
