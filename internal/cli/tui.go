package cli

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/SheetImport/internal/application"
	"github.com/JonMunkholm/SheetImport/internal/core"
	"github.com/JonMunkholm/SheetImport/internal/logging"
	"github.com/JonMunkholm/SheetImport/internal/serialize"
)

func newTUICmd(root *rootOptions) *cobra.Command {
	var (
		document string
		noWrite  bool
	)

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Pick containers and pages from an interactive menu",
		Long: `Opens a menu of registered containers. Each container can be imported
whole or page by page; completed imports are written to OUTPUT_PATH with
the container key as the file name.

Controls:
  ↑/k, ↓/j - Move
  Enter    - Select
  Esc      - Back / cancel a running import
  q        - Quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg
			logging.SetupWriter(cmd.ErrOrStderr(), "error", cfg.Logging.Format)

			format, err := serialize.ParseFormat(cfg.Output.Format)
			if err != nil {
				return err
			}

			ctx := core.ContextWithUserAgent(cmd.Context(), "sheetimport-tui/"+version)
			svc, store, err := newService(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			opts := application.Options{DocumentID: document}
			if !noWrite {
				opts.Write = func(key string) (string, error) {
					var path string
					err := svc.WithContent(key, func(content any) error {
						var werr error
						path, _, werr = serialize.WriteFile(content, serialize.Options{
							BaseDir:  cfg.Output.BaseDir,
							Path:     cfg.Output.Path,
							FileName: key,
							Format:   format,
						})
						return werr
					})
					return path, err
				}
			}

			m := application.NewMenuModel(ctx, svc, core.All(), opts)
			_, err = application.Run(ctx, m)
			return err
		},
	}

	cmd.Flags().StringVarP(&document, "document", "d", "", "Document id for every import (default: each container's)")
	cmd.Flags().BoolVar(&noWrite, "no-write", false, "Import without writing output files")
	return cmd
}
