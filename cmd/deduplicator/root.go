package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soyunomas/deduplicator/internal/cache"
	"github.com/soyunomas/deduplicator/internal/config"
	"github.com/soyunomas/deduplicator/internal/db"
	"github.com/soyunomas/deduplicator/internal/engine"
	"github.com/soyunomas/deduplicator/internal/progress"
	"github.com/soyunomas/deduplicator/internal/report"
)

type flags struct {
	paths         []string
	references    []string
	dryRun        bool
	workers       int
	cacheDB       string
	configPath    string
	jsonOut       bool
	tree          bool
	restoreScript string
	quiet         bool
	verbose       bool
}

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "deduplicator",
		Short: "Mueve a una papelera los archivos que ya existen en las carpetas de referencia",
		Long: `deduplicator recorre las carpetas objetivo y, para cada archivo cuyo nombre y
contenido coinciden con un archivo de las carpetas de referencia, lo mueve a
<objetivo>/deduplicator_trash conservando su ruta relativa.

Las carpetas de referencia nunca se modifican. Nada se borra: la papelera se
revisa y se vacía a mano.

Example:
  deduplicator -p ~/Descargas -r ~/Fotos --dry-run
  deduplicator -p /mnt/usb,/mnt/backup -r ~/Fotos -r ~/Documentos
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringSliceVarP(&f.paths, "paths", "p", nil, "Carpetas a deduplicar (objetivos)")
	fl.StringSliceVarP(&f.references, "reference-paths", "r", nil, "Carpetas de referencia (nunca se modifican)")
	fl.BoolVarP(&f.dryRun, "dry-run", "n", false, "Solo informa, no mueve nada")
	fl.IntVarP(&f.workers, "workers", "w", 0, "Workers de hashing (0 = NumCPU)")
	fl.StringVar(&f.cacheDB, "cache-db", "", "Archivo bbolt para persistir fingerprints entre ejecuciones")
	fl.StringVar(&f.configPath, "config", "", "Archivo de configuración YAML (o CONFIG_PATH)")
	fl.BoolVar(&f.jsonOut, "json", false, "Salida en formato JSON a stdout")
	fl.BoolVar(&f.tree, "tree", false, "Muestra la papelera como árbol al terminar")
	fl.StringVar(&f.restoreScript, "restore-script", "", "Genera un script .sh que deshace los movimientos")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "Sin barras de progreso")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Log detallado")

	_ = cmd.MarkFlagRequired("paths")
	_ = cmd.MarkFlagRequired("reference-paths")
	return cmd
}

func run(cmd *cobra.Command, f *flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}

	// Priority: flag > env > default
	if cmd.Flags().Changed("workers") {
		cfg.Workers = f.workers
	}
	if cmd.Flags().Changed("cache-db") {
		cfg.CacheDB = f.cacheDB
	}

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	log := setupLogger(cfg.Env, f.verbose, stderr)

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cacheOpts := []cache.Option{cache.WithLogger(log)}
	if cfg.CacheDB != "" {
		store, err := db.Open(db.Config{Path: cfg.CacheDB})
		if err != nil {
			return fmt.Errorf("cache-db: %w", err)
		}
		defer store.Close()
		if n, err := store.Len(); err == nil {
			log.Debug("caché persistente abierta", slog.String("path", cfg.CacheDB), slog.Int("entries", n))
		}
		cacheOpts = append(cacheOpts, cache.WithStore(store))
	}

	bars := progress.NewManager(progress.Options{Quiet: f.quiet || f.jsonOut, Writer: stderr})
	observers := engine.Observers{bars}
	if !f.jsonOut {
		observers = append(observers, &consoleObserver{out: stdout, bars: bars})
		printHeader(stdout, f.paths, f.references, f.dryRun)
	}

	runner := engine.New(engine.Options{
		DryRun:   f.dryRun,
		Workers:  cfg.Workers,
		Markers:  cfg.Markers,
		Observer: observers,
		Logger:   log,
		Cache:    cache.New(cacheOpts...),
	})

	summary, runErr := runner.Run(ctx, f.paths, f.references)
	if summary == nil {
		// Precondición: no se tocó nada
		return runErr
	}

	rep := report.Generate(summary)
	if f.jsonOut {
		if err := report.WriteJSON(stdout, rep); err != nil {
			return err
		}
	} else {
		printSummary(stdout, rep)
	}

	if f.tree {
		if tree := report.RenderTree(rep); tree != "" {
			fmt.Fprintln(stdout, "")
			fmt.Fprint(stdout, tree)
		}
	}

	if f.restoreScript != "" {
		if err := writeRestoreScript(f.restoreScript, rep); err != nil {
			return fmt.Errorf("generando script: %w", err)
		}
		if !f.jsonOut {
			fmt.Fprintf(stdout, "\n📄 Script generado: %s\n", f.restoreScript)
		}
	}

	// Cancelación: el reporte parcial ya se mostró
	return runErr
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeRestoreScript(path string, rep report.Report) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if err := report.WriteRestoreScript(file, rep); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
