package workflow

import (
	"fmt"
	"strings"
)

// EntryOutcome reports what happened to one entry of a batched remote write
type EntryOutcome struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func okOutcome(index int, id, name string) EntryOutcome {
	return EntryOutcome{Index: index, ID: id, Name: name, Success: true}
}

func failedOutcome(index int, id, name string, err error) EntryOutcome {
	return EntryOutcome{Index: index, ID: id, Name: name, Error: err.Error()}
}

// Outcomes is the per-entry result of a batch, in input order
type Outcomes []EntryOutcome

// Succeeded returns the number of entries that went through
func (o Outcomes) Succeeded() int {
	n := 0
	for _, e := range o {
		if e.Success {
			n++
		}
	}
	return n
}

// Failed returns the entries that did not go through
func (o Outcomes) Failed() Outcomes {
	var failed Outcomes
	for _, e := range o {
		if !e.Success {
			failed = append(failed, e)
		}
	}
	return failed
}

// Err returns a RemoteError when no entry succeeded, nil otherwise.
// Partial success is not an error; callers read Failed for the rest.
func (o Outcomes) Err(op string) error {
	if len(o) == 0 || o.Succeeded() > 0 {
		return nil
	}
	msgs := make([]string, 0, len(o))
	for _, e := range o {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.ID, e.Error))
	}
	return &RemoteError{Op: op, Message: strings.Join(msgs, "; ")}
}
