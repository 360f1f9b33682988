package intent

import (
	"encoding/json"
	"testing"
)

func TestSlotsFromMap_Create(t *testing.T) {
	slots, err := SlotsFromMap(TypeCreate, map[string]any{
		"amount":   12.5,
		"category": "lunch",
		"merchant": "corner deli",
		"time":     "yesterday",
	})
	if err != nil {
		t.Fatalf("SlotsFromMap: %v", err)
	}
	got, ok := slots.(CreateSlots)
	if !ok {
		t.Fatalf("slots = %T, want CreateSlots", slots)
	}
	want := CreateSlots{Amount: 12.5, Category: "lunch", Merchant: "corner deli", Time: "yesterday"}
	if got != want {
		t.Errorf("slots = %+v, want %+v", got, want)
	}
}

func TestSlotsFromMap_AcceptsQuotedAmount(t *testing.T) {
	slots, err := SlotsFromMap(TypeCreate, map[string]any{"amount": "42.50"})
	if err != nil {
		t.Fatalf("SlotsFromMap: %v", err)
	}
	if got := slots.(CreateSlots).Amount; got != 42.5 {
		t.Errorf("amount = %v, want 42.5", got)
	}
}

func TestSlotsFromMap_RejectsWrongShapes(t *testing.T) {
	cases := []struct {
		name string
		typ  Type
		m    map[string]any
	}{
		{"non-numeric amount", TypeCreate, map[string]any{"amount": "a lot"}},
		{"numeric category", TypeCreate, map[string]any{"category": 3}},
		{"object target", TypeNavigate, map[string]any{"target": map[string]any{"page": "budget"}}},
	}
	for _, tc := range cases {
		if _, err := SlotsFromMap(tc.typ, tc.m); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}

func TestSlotsFromMap_DropsUnknownKeys(t *testing.T) {
	slots, err := SlotsFromMap(TypeQuery, map[string]any{
		"category":   "groceries",
		"confidence": 0.93,
		"reasoning":  "user asked about food spend",
	})
	if err != nil {
		t.Fatalf("SlotsFromMap: %v", err)
	}
	got, ok := slots.(QuerySlots)
	if !ok {
		t.Fatalf("slots = %T, want QuerySlots", slots)
	}
	if got.Category != "groceries" || got.Time != "" {
		t.Errorf("slots = %+v, want category groceries only", got)
	}
}

func TestSlotsFromMap_ParameterlessTypes(t *testing.T) {
	for _, typ := range []Type{TypeConfirm, TypeCancel, TypeHelp, TypeUnknown} {
		slots, err := SlotsFromMap(typ, map[string]any{"target": "ignored"})
		if err != nil {
			t.Fatalf("%v: SlotsFromMap: %v", typ, err)
		}
		if slots != nil {
			t.Errorf("%v: slots = %v, want nil", typ, slots)
		}
	}
}

func TestSlotsFromMap_EmptyMap(t *testing.T) {
	slots, err := SlotsFromMap(TypeCreate, nil)
	if err != nil {
		t.Fatalf("SlotsFromMap: %v", err)
	}
	if slots != nil {
		t.Errorf("slots = %v, want nil", slots)
	}
}

func TestDecodeSlots_RoundTrip(t *testing.T) {
	cases := []struct {
		typ   Type
		slots Slots
	}{
		{TypeCreate, CreateSlots{Amount: 8, Category: "coffee"}},
		{TypeModify, ModifySlots{Field: "amount", Amount: 15}},
		{TypeDelete, DeleteSlots{Target: "last"}},
		{TypeQuery, QuerySlots{Category: "transport", Time: "this month"}},
		{TypeNavigate, NavigateSlots{Target: "reports"}},
		{TypeSetPreference, PreferenceSlots{Field: "currency", Target: "eur"}},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(tc.slots)
		if err != nil {
			t.Fatalf("%v: marshal: %v", tc.typ, err)
		}
		got, err := DecodeSlots(tc.typ, raw)
		if err != nil {
			t.Fatalf("%v: DecodeSlots: %v", tc.typ, err)
		}
		if got != tc.slots {
			t.Errorf("%v: decoded %+v, want %+v", tc.typ, got, tc.slots)
		}
	}
}

func TestDecodeSlots_EmptyPayload(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage("null")} {
		slots, err := DecodeSlots(TypeCreate, raw)
		if err != nil {
			t.Fatalf("DecodeSlots(%q): %v", raw, err)
		}
		if slots != nil {
			t.Errorf("DecodeSlots(%q) = %v, want nil", raw, slots)
		}
	}
}

func TestDecodeSlots_ParameterlessType(t *testing.T) {
	slots, err := DecodeSlots(TypeConfirm, json.RawMessage(`{"target":"x"}`))
	if err != nil {
		t.Fatalf("DecodeSlots: %v", err)
	}
	if slots != nil {
		t.Errorf("slots = %v, want nil", slots)
	}
}
