package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/runtimeterrors/aegisec/internal/domain/catalog"
	"github.com/runtimeterrors/aegisec/internal/infrastructure/toolcheck"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tool catalog and which tools are installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		categoryFilter, _ := cmd.Flags().GetString("category")
		showVersions, _ := cmd.Flags().GetBool("versions")

		cat := catalog.Default()
		specs := cat.All()
		if categoryFilter != "" {
			specs = cat.ByCategory(categoryFilter)
			if len(specs) == 0 {
				return fmt.Errorf("unknown category %q (known: %s)",
					categoryFilter, strings.Join(cat.Categories(), ", "))
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tCATEGORY\tPRIORITY\tINSTALLED\tDESCRIPTION")
		for _, spec := range specs {
			installed := colorError("no")
			if toolcheck.Installed(spec.Name) {
				installed = colorSuccess("yes")
				if showVersions {
					if v := toolcheck.Version(cmd.Context(), spec.Name); v != "" {
						installed = colorSuccess(v)
					}
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				spec.Name, spec.Category, spec.Priority, installed, spec.Description)
		}
		return w.Flush()
	},
}

func init() {
	toolsCmd.Flags().StringP("category", "c", "", "filter by category")
	toolsCmd.Flags().Bool("versions", false, "probe installed tools for their version string")
}
