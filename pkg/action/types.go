package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Kind names one variant of Action. The set is closed.
type Kind string

const (
	KindFileDeleted         Kind = "FileDeleted"
	KindLogManipulated      Kind = "LogManipulated"
	KindNetworkTraceRemoved Kind = "NetworkTraceRemoved"
	KindBashHistoryCleared  Kind = "BashHistoryCleared"
	KindTimestampUpdated    Kind = "TimestampUpdated"
	KindError               Kind = "Error"
)

// Kinds lists every variant in declaration order.
var Kinds = []Kind{
	KindFileDeleted,
	KindLogManipulated,
	KindNetworkTraceRemoved,
	KindBashHistoryCleared,
	KindTimestampUpdated,
	KindError,
}

// Valid reports whether k is one of the declared variants.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// HasPayload is false only for unit variants.
func (k Kind) HasPayload() bool {
	return k != KindBashHistoryCleared
}

// Action is one audit-worthy event. It is a plain value: copy it freely, never mutate it.
//
// Detail holds the path, description or message of the variant and is empty
// for BashHistoryCleared.
type Action struct {
	Kind   Kind
	Detail string
}

func FileDeleted(path string) Action { return Action{Kind: KindFileDeleted, Detail: path} }

func LogManipulated(path string) Action { return Action{Kind: KindLogManipulated, Detail: path} }

func NetworkTraceRemoved(description string) Action {
	return Action{Kind: KindNetworkTraceRemoved, Detail: description}
}

func BashHistoryCleared() Action { return Action{Kind: KindBashHistoryCleared} }

func TimestampUpdated(path string) Action { return Action{Kind: KindTimestampUpdated, Detail: path} }

func Error(message string) Action { return Action{Kind: KindError, Detail: message} }

// Errorf builds an Error action from a format string.
func Errorf(format string, args ...any) Action {
	return Error(fmt.Sprintf(format, args...))
}

// IsError reports whether the action records a failure.
func (a Action) IsError() bool { return a.Kind == KindError }

func (a Action) String() string {
	if !a.Kind.HasPayload() {
		return string(a.Kind)
	}
	return fmt.Sprintf("%s(%s)", a.Kind, a.Detail)
}

// MarshalJSON encodes the externally tagged form {"<Kind>": <payload>}.
// Unit variants carry a null payload.
func (a Action) MarshalJSON() ([]byte, error) {
	if !a.Kind.Valid() {
		return nil, fmt.Errorf("unknown action kind %q", a.Kind)
	}
	if !a.Kind.HasPayload() {
		return json.Marshal(map[Kind]any{a.Kind: nil})
	}
	return json.Marshal(map[Kind]string{a.Kind: a.Detail})
}

// UnmarshalJSON accepts {"<Kind>": <payload>} and, for unit variants, the bare
// string form "<Kind>".
func (a *Action) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		k := Kind(name)
		if !k.Valid() || k.HasPayload() {
			return fmt.Errorf("action %q needs a payload", name)
		}
		*a = Action{Kind: k}
		return nil
	}

	var tagged map[Kind]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("action must have exactly one variant, got %d", len(tagged))
	}
	for k, raw := range tagged {
		if !k.Valid() {
			return fmt.Errorf("unknown action kind %q", k)
		}
		if !k.HasPayload() {
			*a = Action{Kind: k}
			return nil
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("action %s needs a payload, got null", k)
		}
		var detail string
		if err := json.Unmarshal(raw, &detail); err != nil {
			return fmt.Errorf("decode %s payload: %w", k, err)
		}
		*a = Action{Kind: k, Detail: detail}
	}
	return nil
}

// Record is an Action stamped with the time the monitor dequeued it.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
}
