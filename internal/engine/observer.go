package engine

import "github.com/soyunomas/deduplicator/internal/entities"

// Observer recibe eventos de progreso. No puede alterar el resultado; el
// Runner serializa las llamadas.
type Observer interface {
	Notify(ev entities.Event)
}

// ObserverFunc adapta una función a Observer.
type ObserverFunc func(ev entities.Event)

func (f ObserverFunc) Notify(ev entities.Event) { f(ev) }

// Observers reparte cada evento a todos.
type Observers []Observer

func (o Observers) Notify(ev entities.Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Notify(ev)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Notify(entities.Event) {}
