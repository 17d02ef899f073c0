package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/SheetImport/internal/application"
	"github.com/JonMunkholm/SheetImport/internal/config"
	"github.com/JonMunkholm/SheetImport/internal/core"
	"github.com/JonMunkholm/SheetImport/internal/logging"
	"github.com/JonMunkholm/SheetImport/internal/serialize"
)

var errImportFailed = errors.New("import failed")

type importOptions struct {
	project   string
	container string
	document  string
	pages     []string
	all       bool
	tui       bool
	noWrite   bool
	outPath   string
	fileName  string
	format    string
}

func newImportCmd(root *rootOptions) *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import spreadsheet pages into a container",
		Long: `Downloads the selected pages of a document, fills the container's content
object and writes it to the output directory.

Pages are selected by field name with --page (repeatable) or all at once
with --all. A TOML project file can carry the same settings:

  container   = "definitions"
  document_id = "1AbC..."
  pages       = ["Items", "Units"]

  [output]
  path      = "../../Configs"
  file_name = "Configs.v0.1"
  format    = "json"

Flags given on the command line override the project file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runImport(cmd, root.cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.project, "project", "", "TOML project file describing the import")
	f.StringVarP(&opts.container, "container", "c", "", "Container key (see 'sheetimport containers')")
	f.StringVarP(&opts.document, "document", "d", "", "Spreadsheet document id (default: the container's)")
	f.StringSliceVarP(&opts.pages, "page", "p", nil, "Field to import; repeat or comma-separate for several")
	f.BoolVar(&opts.all, "all", false, "Import every page of the container")
	f.BoolVar(&opts.tui, "tui", false, "Show an interactive progress view")
	f.BoolVar(&opts.noWrite, "no-write", false, "Import without writing the output file")
	f.StringVar(&opts.outPath, "output-path", "", "Output directory (default: OUTPUT_PATH)")
	f.StringVar(&opts.fileName, "file-name", "", "Output file name without extension (default: OUTPUT_FILE_NAME)")
	f.StringVar(&opts.format, "format", "", "Output format: json or binary (default: OUTPUT_FORMAT)")

	cmd.MarkFlagsMutuallyExclusive("page", "all")
	return cmd
}

// resolveImport merges the project file, if any, with the flags.
func resolveImport(cmd *cobra.Command, cfg *config.Config, opts importOptions) (core.ImportRequest, config.OutputConfig, error) {
	req := core.ImportRequest{}
	out := cfg.Output

	if opts.project != "" {
		p, err := config.LoadProject(opts.project)
		if err != nil {
			return req, out, err
		}
		req = core.ImportRequest{Container: p.Container, DocumentID: p.DocumentID, Pages: p.Pages, All: p.All}
		out = p.OutputWith(cfg.Output)
	}

	flags := cmd.Flags()
	if flags.Changed("container") {
		req.Container = opts.container
	}
	if flags.Changed("document") {
		req.DocumentID = opts.document
	}
	if flags.Changed("page") {
		req.Pages, req.All = opts.pages, false
	}
	if flags.Changed("all") {
		req.All = opts.all
		if opts.all {
			req.Pages = nil
		}
	}
	if opts.outPath != "" {
		out.Path = opts.outPath
	}
	if opts.fileName != "" {
		out.FileName = opts.fileName
	}
	if opts.format != "" {
		out.Format = strings.ToLower(opts.format)
	}

	if strings.TrimSpace(req.Container) == "" {
		return req, out, errors.New("a container is required: use --container or --project")
	}
	return req, out, nil
}

func runImport(cmd *cobra.Command, cfg *config.Config, opts importOptions) error {
	req, out, err := resolveImport(cmd, cfg, opts)
	if err != nil {
		return err
	}

	var format serialize.Format
	if !opts.noWrite {
		if format, err = serialize.ParseFormat(out.Format); err != nil {
			return err
		}
	}

	ctx := core.ContextWithUserAgent(cmd.Context(), "sheetimport-cli/"+version)

	svc, store, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var write application.WriteFunc
	if !opts.noWrite {
		write = func(key string) (string, error) {
			var (
				path string
				n    int64
			)
			err := svc.WithContent(key, func(content any) error {
				var werr error
				path, n, werr = serialize.WriteFile(content, serialize.Options{
					BaseDir:  out.BaseDir,
					Path:     out.Path,
					FileName: out.FileName,
					Format:   format,
				})
				return werr
			})
			if err != nil {
				return "", err
			}
			slog.Info("content written", "container", key, "path", path, "bytes", n)
			return path, nil
		}
	}

	if opts.tui {
		return runImportTUI(ctx, cmd, cfg, svc, req, write)
	}

	runID, err := svc.StartImport(ctx, req)
	if err != nil {
		return err
	}
	logger := logging.WithFields(logging.WithRunID(ctx, runID), "container", req.Container)
	logger.Debug("import started")

	updates, err := svc.SubscribeProgress(runID)
	if err != nil {
		return err
	}

	// An interrupt stops the run before its next page
	stop := context.AfterFunc(ctx, func() {
		_ = svc.CancelImport(runID)
	})
	defer stop()

	w := cmd.OutOrStdout()
	printProgress(w, updates)

	res, err := svc.GetResult(context.WithoutCancel(ctx), runID)
	if err != nil {
		return err
	}
	printResult(w, res)

	return finishImport(w, res, write)
}

// runImportTUI shows the run in the progress view. Logs would tear the
// view, so only errors are kept.
func runImportTUI(ctx context.Context, cmd *cobra.Command, cfg *config.Config, svc *core.Service, req core.ImportRequest, write application.WriteFunc) error {
	logging.SetupWriter(cmd.ErrOrStderr(), "error", cfg.Logging.Format)

	m := application.NewImportModel(ctx, svc, req, application.Options{Write: write})
	m, err := application.Run(ctx, m)
	if err != nil {
		return err
	}
	if m.Result() == nil {
		return m.Err()
	}
	if m.Err() != nil {
		return m.Err()
	}
	return outcome(m.Result())
}

// printProgress writes each new status line until the run's stream closes.
func printProgress(w io.Writer, updates <-chan core.RunProgress) {
	var last string
	for p := range updates {
		if p.Status == "" || p.Status == last {
			continue
		}
		last = p.Status
		fmt.Fprintf(w, "[%3d%%] %s\n", p.Percent(), p.Status)
	}
}

func printResult(w io.Writer, res *core.RunResult) {
	for _, p := range res.Pages {
		fmt.Fprintf(w, "  %s -> %s: %d records", p.Page, p.Field, p.Records)
		if p.Skipped > 0 {
			fmt.Fprintf(w, " (%d rows skipped)", p.Skipped)
		}
		fmt.Fprintln(w)
	}
	for _, warn := range res.Warnings {
		if warn.Value != "" {
			fmt.Fprintf(w, "  warning: %s line %d, column %s: %s (%q)\n", warn.Page, warn.Line, warn.Column, warn.Message, warn.Value)
		} else {
			fmt.Fprintf(w, "  warning: %s line %d, column %s: %s\n", warn.Page, warn.Line, warn.Column, warn.Message)
		}
	}
	fmt.Fprintf(w, "%s: %d records from %d pages in %s\n", res.State, res.Records(), len(res.Pages), res.Duration.Round(time.Millisecond))
}

// finishImport writes the content of a completed run and maps the outcome
// to the command's error.
func finishImport(w io.Writer, res *core.RunResult, write application.WriteFunc) error {
	if res.State == core.StateCompleted && write != nil {
		path, err := write(res.Container)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %s\n", path)
	}
	return outcome(res)
}

func outcome(res *core.RunResult) error {
	switch res.State {
	case core.StateCompleted:
		return nil
	case core.StateCancelled:
		return core.ErrCancelled
	default:
		return fmt.Errorf("%w: %s", errImportFailed, res.Error)
	}
}
