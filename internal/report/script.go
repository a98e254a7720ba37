package report

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// WriteRestoreScript genera un script sh que devuelve cada archivo
// movido a su ruta original. mv -n nunca pisa un archivo existente.
// Las acciones de dry-run se omiten: no hay nada que restaurar.
func WriteRestoreScript(w io.Writer, r Report) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "#!/bin/sh\n")
	fmt.Fprintf(bw, "# Generado por deduplicator (run %s)\n", r.Metadata.RunID)
	fmt.Fprintf(bw, "set -e\n")
	fmt.Fprintf(bw, "echo 'Restaurando archivos...'\n\n")

	for _, tr := range r.Targets {
		wrote := false
		for _, a := range tr.Duplicates {
			if a.DryRun {
				continue
			}
			if !wrote {
				fmt.Fprintf(bw, "# Raíz: %s\n", tr.Root)
				wrote = true
			}
			fmt.Fprintf(bw, "mkdir -p %s\n", shellQuote(filepath.Dir(a.Path)))
			fmt.Fprintf(bw, "mv -n -- %s %s\n", shellQuote(a.Destination), shellQuote(a.Path))
		}
		if wrote {
			fmt.Fprintf(bw, "\n")
		}
	}
	return bw.Flush()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
