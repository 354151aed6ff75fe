// Package relayhook republishes host-queue lifecycle events on an event
// bus, so chains can be triggered by the outcome of other chains.
//
//	bus := event.NewBus()
//	eng, _ := engine.New(engine.WithStore(s), engine.WithExtension(relayhook.New(bus,
//	    relayhook.WithEvents(relayhook.EventTaskDLQ),
//	)))
//	bus.Subscribe(relayhook.EventTaskDLQ, alerting.ToListener())
//
// Every event carries one *TaskPayload argument. A chain subscribed to an
// event it also produces triggers itself; restrict the published events
// with WithEvents when that is not wanted.
package relayhook
