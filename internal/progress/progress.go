package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/soyunomas/deduplicator/internal/entities"
)

// Options configures progress bar behavior
type Options struct {
	Quiet  bool
	Writer io.Writer // os.Stderr por defecto
}

// Manager muestra una barra (spinner) por raíz objetivo con los contadores
// de escaneo y hashing. Implementa engine.Observer.
type Manager struct {
	options Options
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	root    string
	scanned int64
	hashed  int64
	dupes   int64
}

// NewManager creates a new progress manager
func NewManager(options Options) *Manager {
	if options.Writer == nil {
		options.Writer = os.Stderr
	}
	return &Manager{options: options}
}

func (pm *Manager) Notify(ev entities.Event) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	switch ev.Kind {
	case entities.EventRootStarted:
		pm.root = ev.Root
		pm.scanned, pm.hashed, pm.dupes = 0, 0, 0
		pm.initBar()
	case entities.EventScanned:
		pm.scanned++
		if pm.bar != nil {
			// #nosec G104 - progress bar errors are not critical for functionality
			pm.bar.Add(1)
		}
	case entities.EventHashed:
		pm.hashed++
		pm.describe()
	case entities.EventDuplicate:
		pm.dupes++
		pm.describe()
	case entities.EventRootFinished:
		if pm.bar != nil {
			pm.bar.Finish()
			pm.bar = nil
		}
	}
}

func (pm *Manager) initBar() {
	if pm.options.Quiet {
		return
	}
	pm.bar = progressbar.NewOptions64(-1,
		progressbar.OptionSetDescription(pm.description()),
		progressbar.OptionSetWriter(pm.options.Writer),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("archivos"),
		progressbar.OptionOnCompletion(func() {
			// #nosec G104 - progress bar completion message is not critical
			fmt.Fprint(pm.options.Writer, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	)
}

func (pm *Manager) description() string {
	return fmt.Sprintf("🔍 %s | hasheados: %d | duplicados: %d", pm.root, pm.hashed, pm.dupes)
}

func (pm *Manager) describe() {
	if pm.bar != nil {
		pm.bar.Describe(pm.description())
	}
}

// Clear borra la barra antes de imprimir otra línea en la terminal.
func (pm *Manager) Clear() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.bar != nil {
		// #nosec G104 - progress bar clear is not critical for functionality
		pm.bar.Clear()
	}
}

// counts devuelve escaneados, hasheados y duplicados de la raíz actual.
func (pm *Manager) counts() (scanned, hashed, dupes int64) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.scanned, pm.hashed, pm.dupes
}
