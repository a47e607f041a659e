// filepath: internal/flow/flow.go
package flow

import (
	"context"

	"github.com/BTreeMap/WarfarinBot/internal/models"
)

// Result is the outcome of feeding one inbound text to a dialogue.
type Result struct {
	Messages []models.OutboundMessage `json:"messages"`
	// State is the step the user is left in. Empty means no session remains.
	State models.StateType `json:"state,omitempty"`
	// Completed is set when this message produced a final recommendation.
	Completed bool `json:"completed,omitempty"`
}

// Handler consumes inbound user text and decides the replies.
type Handler interface {
	HandleMessage(ctx context.Context, userID, text string) (Result, error)
}

func reply(state models.StateType, msgs ...models.OutboundMessage) Result {
	return Result{Messages: msgs, State: state}
}
