package intent

import "testing"

func TestTemplates_SpendStatement(t *testing.T) {
	res, ok := matchTemplates("i spent 12.50 on lunch")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Type != TypeCreate {
		t.Errorf("type = %v, want create", res.Type)
	}
	slots, ok := res.Slots.(CreateSlots)
	if !ok {
		t.Fatalf("slots = %T, want CreateSlots", res.Slots)
	}
	if slots.Amount != 12.5 {
		t.Errorf("amount slot = %v, want 12.5", slots.Amount)
	}
	if slots.Category != "lunch" {
		t.Errorf("category slot = %v, want lunch", slots.Category)
	}
	if res.Source != SourceTemplate {
		t.Errorf("source = %v, want template_match", res.Source)
	}
}

func TestTemplates_CategoryAmount(t *testing.T) {
	res, ok := matchTemplates("coffee 4.50")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Type != TypeCreate {
		t.Errorf("type = %v, want create", res.Type)
	}
	slots, ok := res.Slots.(CreateSlots)
	if !ok {
		t.Fatalf("slots = %T, want CreateSlots", res.Slots)
	}
	if slots.Amount != 4.5 {
		t.Errorf("amount slot = %v, want 4.5", slots.Amount)
	}
	if slots.Category != "coffee" {
		t.Errorf("category slot = %v, want coffee", slots.Category)
	}
}

func TestTemplates_TimeSlot(t *testing.T) {
	res, ok := matchTemplates("i paid 30 for the taxi yesterday")
	if !ok {
		t.Fatal("expected a match")
	}
	slots, ok := res.Slots.(CreateSlots)
	if !ok {
		t.Fatalf("slots = %T, want CreateSlots", res.Slots)
	}
	if slots.Time != "yesterday" {
		t.Errorf("time slot = %v, want yesterday", slots.Time)
	}
	if slots.Category != "taxi" {
		t.Errorf("category slot = %v, want taxi", slots.Category)
	}
}

func TestTemplates_SpendQuestion(t *testing.T) {
	res, ok := matchTemplates("what did i spend on groceries")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.Type != TypeQuery {
		t.Errorf("type = %v, want query", res.Type)
	}
	slots, ok := res.Slots.(QuerySlots)
	if !ok {
		t.Fatalf("slots = %T, want QuerySlots", res.Slots)
	}
	if slots.Category != "groceries" {
		t.Errorf("category slot = %v, want groceries", slots.Category)
	}
}

func TestTemplates_SpendStatementRequiresAmount(t *testing.T) {
	if _, ok := matchTemplates("i spent way too much"); ok {
		t.Error("spend statement without an amount should not match")
	}
}

func TestTemplates_NoMatchForChitchat(t *testing.T) {
	if _, ok := matchTemplates("nice weather today isnt it"); ok {
		t.Error("unexpected template match for chitchat")
	}
}
