package relayhook

// Option configures an Extension.
type Option func(*Extension)

// PayloadFunc replaces the default payload of one event. The returned value
// becomes the event argument.
type PayloadFunc func(p *TaskPayload) (any, error)

// WithEvents restricts the extension to the listed events. By default every
// event is published. Unknown names are ignored.
func WithEvents(events ...string) Option {
	return func(h *Extension) {
		h.enabled = make(map[string]bool, len(events))
		for _, e := range events {
			h.enabled[e] = true
		}
	}
}

// WithPayloadFunc registers a custom payload builder for eventName.
func WithPayloadFunc(eventName string, fn PayloadFunc) Option {
	return func(h *Extension) {
		if h.payloads == nil {
			h.payloads = make(map[string]PayloadFunc)
		}
		h.payloads[eventName] = fn
	}
}
