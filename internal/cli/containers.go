package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/SheetImport/internal/core"
)

func newContainersCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "containers",
		Short: "List registered containers and their pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defs := core.All()

			if asJSON {
				type container struct {
					core.ContainerInfo
					Pages []core.PageInfo `json:"pages"`
				}
				out := make([]container, len(defs))
				for i, d := range defs {
					out[i] = container{ContainerInfo: d.Info, Pages: d.Pages()}
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			if len(defs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No containers registered.")
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("CONTAINER", "GROUP", "FIELD", "PAGE", "KIND", "RECORD")
			for _, d := range defs {
				for i, p := range d.Pages() {
					key, group := "", ""
					if i == 0 {
						key, group = d.Info.Key, d.Info.Group
					}
					t.Row(key, group, p.Field, p.Page, p.Kind, p.Record)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())

			for _, d := range defs {
				if d.Info.DocumentID == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s has no default document; pass --document.\n", d.Info.Key)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

// shortID trims a run id for tables.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
