package intent

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Slots is the typed parameter payload of a recognized intent. Each intent
// type that carries parameters has its own variant, so downstream code gets
// compile-time field access instead of digging through a generic map. The
// generic map form survives only at the LLM boundary, where open-ended
// extracted fields pass through [SlotsFromMap] for validation before they
// enter a [Result].
type Slots interface {
	isSlots()
}

// CreateSlots parameterizes a create intent: log a new expense.
type CreateSlots struct {
	Amount   float64 `json:"amount,omitempty"`
	Category string  `json:"category,omitempty"`
	Merchant string  `json:"merchant,omitempty"`
	Time     string  `json:"time,omitempty"`
}

// ModifySlots parameterizes a modify intent: change a field of an existing
// entry.
type ModifySlots struct {
	Field  string  `json:"field,omitempty"`
	Amount float64 `json:"amount,omitempty"`
	Target string  `json:"target,omitempty"`
}

// DeleteSlots parameterizes a delete intent.
type DeleteSlots struct {
	Target string `json:"target,omitempty"`
}

// QuerySlots parameterizes a spending query.
type QuerySlots struct {
	Category string `json:"category,omitempty"`
	Time     string `json:"time,omitempty"`
}

// NavigateSlots parameterizes a navigation command.
type NavigateSlots struct {
	Target string `json:"target,omitempty"`
}

// PreferenceSlots parameterizes a settings change.
type PreferenceSlots struct {
	Field  string `json:"field,omitempty"`
	Target string `json:"target,omitempty"`
}

func (CreateSlots) isSlots()     {}
func (ModifySlots) isSlots()     {}
func (DeleteSlots) isSlots()     {}
func (QuerySlots) isSlots()      {}
func (NavigateSlots) isSlots()   {}
func (PreferenceSlots) isSlots() {}

// SlotsFromMap validates a generic slot map against the intent type and
// returns the matching typed variant. Keys the variant does not carry are
// dropped; a value of the wrong shape is an error. Intent types without
// parameters (confirm, cancel, help, unknown) always return nil.
func SlotsFromMap(typ Type, m map[string]any) (Slots, error) {
	if len(m) == 0 {
		return nil, nil
	}
	switch typ {
	case TypeCreate:
		var s CreateSlots
		var err error
		if s.Amount, err = numberSlot(m, SlotAmount); err != nil {
			return nil, err
		}
		if s.Category, err = stringSlot(m, SlotCategory); err != nil {
			return nil, err
		}
		if s.Merchant, err = stringSlot(m, SlotMerchant); err != nil {
			return nil, err
		}
		if s.Time, err = stringSlot(m, SlotTime); err != nil {
			return nil, err
		}
		return s, nil

	case TypeModify:
		var s ModifySlots
		var err error
		if s.Field, err = stringSlot(m, SlotField); err != nil {
			return nil, err
		}
		if s.Amount, err = numberSlot(m, SlotAmount); err != nil {
			return nil, err
		}
		if s.Target, err = stringSlot(m, SlotTarget); err != nil {
			return nil, err
		}
		return s, nil

	case TypeDelete:
		target, err := stringSlot(m, SlotTarget)
		if err != nil {
			return nil, err
		}
		return DeleteSlots{Target: target}, nil

	case TypeQuery:
		var s QuerySlots
		var err error
		if s.Category, err = stringSlot(m, SlotCategory); err != nil {
			return nil, err
		}
		if s.Time, err = stringSlot(m, SlotTime); err != nil {
			return nil, err
		}
		return s, nil

	case TypeNavigate:
		target, err := stringSlot(m, SlotTarget)
		if err != nil {
			return nil, err
		}
		return NavigateSlots{Target: target}, nil

	case TypeSetPreference:
		var s PreferenceSlots
		var err error
		if s.Field, err = stringSlot(m, SlotField); err != nil {
			return nil, err
		}
		if s.Target, err = stringSlot(m, SlotTarget); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, nil
}

// DecodeSlots unmarshals a persisted slot payload for the given intent type.
// The variant is chosen by typ, mirroring how [SlotsFromMap] tags values on
// the way in.
func DecodeSlots(typ Type, raw json.RawMessage) (Slots, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v Slots
	switch typ {
	case TypeCreate:
		v = &CreateSlots{}
	case TypeModify:
		v = &ModifySlots{}
	case TypeDelete:
		v = &DeleteSlots{}
	case TypeQuery:
		v = &QuerySlots{}
	case TypeNavigate:
		v = &NavigateSlots{}
	case TypeSetPreference:
		v = &PreferenceSlots{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("intent: decoding %s slots: %w", typ, err)
	}
	return deref(v), nil
}

// deref converts the pointer variant json.Unmarshal needs back to the value
// form the rest of the package traffics in.
func deref(v Slots) Slots {
	switch s := v.(type) {
	case *CreateSlots:
		return *s
	case *ModifySlots:
		return *s
	case *DeleteSlots:
		return *s
	case *QuerySlots:
		return *s
	case *NavigateSlots:
		return *s
	case *PreferenceSlots:
		return *s
	}
	return v
}

// numberSlot reads an optional numeric slot value. JSON decoding hands over
// float64, but LLM output sometimes quotes numbers, so numeric strings are
// accepted too.
func numberSlot(m map[string]any, key string) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("intent: slot %q: %w", key, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("intent: slot %q is not a number: %q", key, n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("intent: slot %q is not a number: %T", key, v)
}

// stringSlot reads an optional string slot value.
func stringSlot(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("intent: slot %q is not a string: %T", key, v)
	}
	return s, nil
}
