package entities

import "time"

// FailureKind clasifica los fallos recuperables por archivo.
type FailureKind string

const (
	FailureWalk      FailureKind = "walk"
	FailureHash      FailureKind = "hash"
	FailureCollision FailureKind = "collision"
	FailureMove      FailureKind = "move"
	FailurePrune     FailureKind = "prune"
)

// Action representa un duplicado confirmado y su destino en la papelera.
// Con DryRun el archivo no se movió.
type Action struct {
	Path        string      `json:"path"`
	Destination string      `json:"destination"`
	Reference   string      `json:"reference"`
	Size        int64       `json:"size_bytes"`
	Fingerprint Fingerprint `json:"-"`
	DryRun      bool        `json:"dry_run"`
}

// Failure es un archivo abandonado; el resto de la pasada continúa.
type Failure struct {
	Path string      `json:"path"`
	Kind FailureKind `json:"kind"`
	Err  error       `json:"-"`
}

// Cause devuelve el texto del error (para el reporte JSON).
func (f Failure) Cause() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// EventKind enumera lo que el motor notifica al observador.
type EventKind int

const (
	EventScanned EventKind = iota
	EventHashed
	EventDuplicate
	EventFailure
	EventPruned
	EventRootStarted
	EventRootFinished
)

// Event es una notificación de progreso. Solo uno de Action/Failure
// viene relleno, según Kind.
type Event struct {
	Kind    EventKind
	Root    string
	Path    string
	Action  *Action
	Failure *Failure
	At      time.Time
}
