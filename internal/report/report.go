// Package report convierte el resultado del motor en salidas para el
// usuario: JSON, árbol de la papelera y script de restauración.
package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/soyunomas/deduplicator/internal/cache"
	"github.com/soyunomas/deduplicator/internal/engine"
	"github.com/soyunomas/deduplicator/internal/entities"
	"github.com/soyunomas/deduplicator/internal/trash"
	"github.com/soyunomas/deduplicator/internal/utils"
)

// --- ESTRUCTURAS PARA EL REPORTE FINAL ---

type Report struct {
	Summary           Summary         `json:"summary"`
	Targets           []TargetResult  `json:"targets"`
	ReferenceFailures []FailureResult `json:"reference_failures,omitempty"`
	Metadata          Metadata        `json:"metadata"`
}

type Metadata struct {
	RunID      string    `json:"run_id"`
	References []string  `json:"references"`
	DryRun     bool      `json:"dry_run"`
	Timestamp  time.Time `json:"timestamp"`
	Duration   string    `json:"duration_human"`
}

type Summary struct {
	TotalFilesScanned     int64            `json:"total_files_scanned"`
	TotalDuplicates       int64            `json:"total_duplicates"`
	TotalFailures         int              `json:"total_failures"`
	ReferenceFiles        int              `json:"reference_files"`
	BytesQuarantined      int64            `json:"bytes_quarantined"`
	BytesQuarantinedHuman string           `json:"bytes_quarantined_human"`
	Cache                 cache.CacheStats `json:"cache"`
}

type TargetResult struct {
	Root       string            `json:"root"`
	TrashDir   string            `json:"trash_dir"`
	Scanned    int64             `json:"files_scanned"`
	Candidates int64             `json:"name_matches"`
	Duplicates []entities.Action `json:"duplicates"`
	Failures   []FailureResult   `json:"failures"`
	Pruned     []string          `json:"pruned_dirs"`
}

type FailureResult struct {
	Path  string               `json:"path"`
	Kind  entities.FailureKind `json:"kind"`
	Cause string               `json:"cause"`
}

func failures(in []entities.Failure) []FailureResult {
	out := make([]FailureResult, 0, len(in))
	for _, f := range in {
		out = append(out, FailureResult{Path: f.Path, Kind: f.Kind, Cause: f.Cause()})
	}
	return out
}

// Generate arma el reporte de una ejecución.
func Generate(s *engine.Summary) Report {
	rep := Report{
		Metadata: Metadata{
			RunID:      uuid.NewString(),
			References: s.References,
			DryRun:     s.DryRun,
			Timestamp:  s.StartedAt,
			Duration:   s.Duration.String(),
		},
		Summary: Summary{
			TotalDuplicates:  s.Duplicates(),
			TotalFailures:    s.Failures(),
			ReferenceFiles:   s.ReferenceFiles,
			BytesQuarantined: s.Bytes(),
			Cache:            s.Cache,
		},
		Targets: []TargetResult{},
	}
	if len(s.ReferenceFailures) > 0 {
		rep.ReferenceFailures = failures(s.ReferenceFailures)
	}

	trashMgr := trash.New()
	for _, st := range s.Targets {
		rep.Summary.TotalFilesScanned += st.TotalFilesScanned
		actions := st.Actions
		if actions == nil {
			actions = []entities.Action{}
		}
		pruned := st.Pruned
		if pruned == nil {
			pruned = []string{}
		}
		rep.Targets = append(rep.Targets, TargetResult{
			Root:       st.Root,
			TrashDir:   trashMgr.Dir(st.Root),
			Scanned:    st.TotalFilesScanned,
			Candidates: st.Candidates,
			Duplicates: actions,
			Failures:   failures(st.Failures),
			Pruned:     pruned,
		})
	}

	rep.Summary.BytesQuarantinedHuman = utils.ByteCountDecimal(rep.Summary.BytesQuarantined)
	return rep
}

func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
