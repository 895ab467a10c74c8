package history

import "testing"

func TestAssembleRelabelsLeadingAssistantTurn(t *testing.T) {
	records := []Record{
		{Author: "bot", FromBot: true, Text: "hey, I'm back"},
		{Author: "alice", Text: "welcome back"},
		{Author: "bot", FromBot: true, Text: "thanks!"},
	}

	turns := Assemble(records, 10)

	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser {
		t.Errorf("first turn role = %q, want %q", turns[0].Role, RoleUser)
	}
	if turns[1].Role != RoleUser || turns[2].Role != RoleAssistant {
		t.Errorf("later turns changed: %q, %q", turns[1].Role, turns[2].Role)
	}
	if turns[0].Text != "hey, I'm back" {
		t.Errorf("relabeling must not touch text, got %q", turns[0].Text)
	}
}

func TestAssembleDropsEmptyTurnsPreservingOrder(t *testing.T) {
	records := []Record{
		{Author: "alice", Text: "first"},
		{Author: "alice", Text: "   "},
		{Author: "bob", Text: ""},
		{Author: "bob", Text: "second"},
		{Author: "alice", Text: "\n\t"},
		{Author: "alice", Text: "third"},
	}

	turns := Assemble(records, 10)

	want := []string{"first", "second", "third"}
	if len(turns) != len(want) {
		t.Fatalf("expected %d turns, got %d", len(want), len(turns))
	}
	for i, w := range want {
		if turns[i].Text != w {
			t.Errorf("turn %d = %q, want %q", i, turns[i].Text, w)
		}
	}
}

func TestAssembleRespectsWindow(t *testing.T) {
	records := []Record{
		{Author: "alice", Text: "old"},
		{Author: "alice", Text: "a"},
		{Author: "bob", Text: "b"},
	}

	turns := Assemble(records, 2)

	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Text != "a" || turns[1].Text != "b" {
		t.Errorf("window kept wrong records: %q, %q", turns[0].Text, turns[1].Text)
	}
}

func TestAssembleEmptyWindow(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		window  int
	}{
		{"no records", nil, 10},
		{"zero window", []Record{{Author: "alice", Text: "hi"}}, 0},
		{"all empty text", []Record{{Author: "alice", Text: " "}}, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if turns := Assemble(tt.records, tt.window); len(turns) != 0 {
				t.Errorf("expected empty sequence, got %d turns", len(turns))
			}
		})
	}
}
