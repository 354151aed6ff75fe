package event

import (
	"time"

	"github.com/risetechapps/jobchain/id"
)

// Event is the receipt of one publication.
type Event struct {
	ID        id.EventID `json:"id"`
	Name      string     `json:"name"`
	Args      []any      `json:"-"`
	Listeners int        `json:"listeners"`
	CreatedAt time.Time  `json:"created_at"`
}
