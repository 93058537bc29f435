package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/agentic-research/remolder/internal/config"
	"github.com/agentic-research/remolder/internal/format"
	"github.com/agentic-research/remolder/internal/pack"
)

type applyOptions struct {
	manifest string
	out      string
	pack     string
	set      []string
	workers  int
	diff     bool
	strict   bool
}

var applyFlags applyOptions

var applyCmd = &cobra.Command{
	Use:   "apply [source]",
	Short: "Remold a pack directory or SQLite pack database",
	Long: `Apply runs the manifest's remolders over every resource of the source.
The source is a directory, or a SQLite database when it ends in .db. Without
--out nothing is written, which together with --diff previews the changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		opts := applyFlags
		if !cmd.Flags().Changed("manifest") {
			opts.manifest = cfg.Manifest
		}
		if !cmd.Flags().Changed("pack") {
			opts.pack = cfg.Pack
		}
		if !cmd.Flags().Changed("workers") {
			opts.workers = cfg.Workers
		}
		logger := cfg.NewLogger(cmd.ErrOrStderr())
		return runApply(cmd.Context(), cmd.OutOrStdout(), logger, args[0], opts)
	},
}

func init() {
	applyCmd.Flags().StringVarP(&applyFlags.manifest, "manifest", "m", "", "Path to the remolder manifest (default $REMOLDER_MANIFEST or remolders.yaml)")
	applyCmd.Flags().StringVarP(&applyFlags.out, "out", "o", "", "Output directory, or SQLite database when it ends in .db")
	applyCmd.Flags().StringVarP(&applyFlags.pack, "pack", "p", "", "Pack id of the source (default: source base name)")
	applyCmd.Flags().StringArrayVar(&applyFlags.set, "set", nil, "Override a manifest config value (key=value, repeatable)")
	applyCmd.Flags().IntVarP(&applyFlags.workers, "workers", "w", 0, "Resources remolded at once (default: GOMAXPROCS)")
	applyCmd.Flags().BoolVar(&applyFlags.diff, "diff", false, "Print a diff of every changed resource")
	applyCmd.Flags().BoolVar(&applyFlags.strict, "strict", false, "Exit non-zero when any resource fails to remold")
	rootCmd.AddCommand(applyCmd)
}

func runApply(ctx context.Context, stdout io.Writer, logger hclog.Logger, source string, opts applyOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	manifest, err := pack.LoadManifest(opts.manifest)
	if err != nil {
		return err
	}
	overrides, err := parseSets(opts.set)
	if err != nil {
		return err
	}

	mgr, err := pack.NewManager(format.Defaults(), manifest, overrides,
		pack.WithLogger(logger), pack.WithWorkers(opts.workers))
	if err != nil {
		return err
	}

	src, closeSrc, err := openSource(source, opts.pack)
	if err != nil {
		return err
	}
	defer closeSrc()

	sink, closeSink, err := openSink(opts.out)
	if err != nil {
		return err
	}

	var total, routed, changed, failed int
	start := time.Now()
	runErr := mgr.Run(ctx, src, func(o pack.Outcome) error {
		total++
		if o.Routed {
			routed++
		}
		if o.Err != nil {
			failed++
		}
		if o.Routed && o.Err == nil {
			before, err := o.Original.ReadAll()
			if err != nil {
				return err
			}
			after, err := o.Remolded.ReadAll()
			if err != nil {
				return err
			}
			if string(before) != string(after) {
				changed++
				if opts.diff {
					if err := writeDiff(stdout, o.Location, before, after); err != nil {
						return err
					}
				}
			}
		}
		if sink == nil {
			return nil
		}
		return sink.Put(o.Location, o.Remolded)
	})
	closeErr := closeSink()
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("close output: %w", closeErr)
	}

	fmt.Fprintf(stdout, "Remolded %d of %d resources from %s (%d changed, %d failed) in %v.\n",
		routed, total, src.ID(), changed, failed, time.Since(start).Round(time.Millisecond))
	if opts.strict && failed > 0 {
		return fmt.Errorf("%d resources failed to remold", failed)
	}
	return nil
}

// parseSets reads key=value overrides; values are typed by pack.ParseValue.
func parseSets(sets []string) (map[string]any, error) {
	out := make(map[string]any, len(sets))
	for _, s := range sets {
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", s)
		}
		out[strings.TrimSpace(k)] = pack.ParseValue(v)
	}
	return out, nil
}

func isDatabase(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".db")
}

func openSource(source, id string) (pack.Source, func(), error) {
	if isDatabase(source) {
		if id == "" {
			id = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
		}
		src, err := pack.OpenSQLite(id, source)
		if err != nil {
			return nil, nil, err
		}
		return src, func() { _ = src.Close() }, nil
	}
	info, err := os.Stat(source)
	if err != nil {
		return nil, nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("source %s is neither a directory nor a .db file", source)
	}
	if id == "" {
		id = filepath.Base(filepath.Clean(source))
	}
	return pack.NewDirSource(id, osfs.New(source)), func() {}, nil
}

func openSink(out string) (pack.Sink, func() error, error) {
	if out == "" {
		return nil, func() error { return nil }, nil
	}
	if isDatabase(out) {
		_ = os.Remove(out) // Overwrite
		sink, err := pack.CreateSQLite(out)
		if err != nil {
			return nil, nil, err
		}
		return sink, sink.Close, nil
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create output dir: %w", err)
	}
	return pack.NewDirSink(osfs.New(out)), func() error { return nil }, nil
}
