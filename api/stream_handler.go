package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/stream"
)

// streamEvents writes lifecycle events for the requested topics as
// server-sent events until the client leaves or the engine shuts down.
// Without a topic parameter the firehose is streamed.
func (a *API) streamEvents(c echo.Context) error {
	topics := c.QueryParams()["topic"]
	if len(topics) == 0 {
		topics = []string{stream.TopicFirehose}
	}

	subID := id.NewStreamID().String()
	sub, err := a.stream.Subscribe(subID, topics...)
	if err != nil {
		return badRequest(err.Error())
	}
	defer a.stream.Remove(subID)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": subscribed %s\n\n", subID)
	w.Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-sub.C():
			if !ok {
				return nil
			}
			raw, err := json.Marshal(evt)
			if err != nil {
				return fmt.Errorf("stream: marshal %s: %w", evt.Type, err)
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, raw); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
