package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/soyunomas/deduplicator/internal/entities"
	"github.com/soyunomas/deduplicator/internal/progress"
	"github.com/soyunomas/deduplicator/internal/report"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// consoleObserver informa de cada acción en cuanto ocurre.
type consoleObserver struct {
	out  io.Writer
	bars *progress.Manager
}

func (c *consoleObserver) Notify(ev entities.Event) {
	switch ev.Kind {
	case entities.EventRootStarted:
		c.bars.Clear()
		fmt.Fprintf(c.out, "📂 Objetivo: %s\n", ev.Root)
	case entities.EventDuplicate:
		c.bars.Clear()
		a := ev.Action
		if a.DryRun {
			fmt.Fprintf(c.out, "      🗑️  [Candidato]: %s %s\n", a.Path, faint("(= "+a.Reference+")"))
		} else {
			fmt.Fprintf(c.out, "      ♻️  %s %s -> %s\n", green("Movido a basura:"), a.Path, a.Destination)
		}
	case entities.EventFailure:
		c.bars.Clear()
		f := ev.Failure
		fmt.Fprintf(c.out, "      ❌ %s [%s]: %v\n", red(f.Path), f.Kind, f.Err)
	case entities.EventPruned:
		c.bars.Clear()
		fmt.Fprintf(c.out, "      🧹 Directorio vacío eliminado: %s\n", ev.Path)
	}
}

func printHeader(out io.Writer, targets, refs []string, dryRun bool) {
	fmt.Fprintf(out, "🚀 Deduplicator - Objetivos: %s\n", strings.Join(targets, ", "))
	fmt.Fprintf(out, "📚 Referencias: %s\n", strings.Join(refs, ", "))
	if dryRun {
		fmt.Fprintln(out, yellow("🔎 DRY RUN: no se modificará nada"))
	}
	fmt.Fprintln(out, "------------------------------------------------")
}

func printSummary(out io.Writer, r report.Report) {
	fmt.Fprintln(out, "------------------------------------------------")
	if r.Summary.TotalDuplicates == 0 && r.Summary.TotalFailures == 0 {
		fmt.Fprintln(out, green("✅ ¡Limpio! No se encontraron duplicados."))
	}

	fmt.Fprintf(out, "📚 Archivos de referencia: %d\n", r.Summary.ReferenceFiles)
	fmt.Fprintf(out, "🔍 Archivos escaneados: %d\n", r.Summary.TotalFilesScanned)
	if r.Metadata.DryRun {
		fmt.Fprintf(out, "🏁 Escaneo terminado. Candidatos a mover: %d\n", r.Summary.TotalDuplicates)
		fmt.Fprintf(out, "💾 Espacio recuperable: %s\n", r.Summary.BytesQuarantinedHuman)
		fmt.Fprintln(out, "💡 Ejecuta sin --dry-run para mover los duplicados a la papelera.")
	} else {
		fmt.Fprintf(out, "🏁 Operación completada. Archivos movidos: %d\n", r.Summary.TotalDuplicates)
		fmt.Fprintf(out, "💾 Espacio en papelera: %s\n", r.Summary.BytesQuarantinedHuman)
	}
	if r.Summary.TotalFailures > 0 {
		fmt.Fprintln(out, red(fmt.Sprintf("⚠️  Archivos omitidos por error: %d", r.Summary.TotalFailures)))
	}
	c := r.Summary.Cache
	fmt.Fprintln(out, faint(fmt.Sprintf("   caché: %d hits, %d hasheados, %d desde disco (%s)",
		c.Hits, c.Misses, c.Stored, r.Metadata.Duration)))
}
