package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderEmbedded(t *testing.T) {
	c := MustDefault()
	s, err := c.Render("push.battle.raided", map[string]any{
		"Attacker": "Bjorn", "Wood": 12, "Meat": 3, "RatingChange": -16, "ShieldHours": 4,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(s, "Bjorn raided your camp") || !strings.Contains(s, "12 wood") {
		t.Fatalf("unexpected text %q", s)
	}
}

func TestRenderMissingDataKeyFails(t *testing.T) {
	c := MustDefault()
	if _, err := c.Render("push.battle.raided", map[string]any{"Attacker": "x"}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if got := c.RenderOr("push.nope", nil, "fallback"); got != "fallback" {
		t.Fatalf("RenderOr = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("push:\n  gift:\n    title: \"Loot!\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s, _ := c.Render("push.gift.title", nil); s != "Loot!" {
		t.Fatalf("override not applied: %q", s)
	}
	if s, _ := c.Render("push.battle.title", nil); s != "Your camp was raided" {
		t.Fatalf("embedded key lost: %q", s)
	}
}

func TestOverrideDirRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("push:\n  gift:\n    title: x\n"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil {
		t.Fatalf("expected duplicate key error")
	}
}
