package kb

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSplitSections(t *testing.T) {
	content := `Manim voiceover basics.

## Scene setup

Use VoiceoverScene and set_speech_service.

## Timing

Wrap animations in with self.voiceover(...) blocks.
`
	sections := splitSections("manim.md", content)
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	if sections[0].ID != "manim.md::intro" {
		t.Fatalf("first section id: %q", sections[0].ID)
	}
	if sections[1].ID != "manim.md::Scene setup" {
		t.Fatalf("second section id: %q", sections[1].ID)
	}
	if sections[2].ID != "manim.md::Timing" {
		t.Fatalf("third section id: %q", sections[2].ID)
	}
	for _, s := range sections {
		if s.Body == "" {
			t.Fatalf("section %s has empty body", s.ID)
		}
	}
}

func TestSplitSections_NoHeadings(t *testing.T) {
	sections := splitSections("plain.md", "just one paragraph, no headings")
	if len(sections) != 1 || sections[0].ID != "plain.md::intro" {
		t.Fatalf("unexpected sections: %+v", sections)
	}
}

func TestLoadSections_Directory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("## One\n\nbody"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("not markdown"), 0o644); err != nil {
		t.Fatal(err)
	}

	sections, err := LoadSections(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(sections) != 1 || sections[0].ID != "a.md::One" {
		t.Fatalf("unexpected sections: %+v", sections)
	}
}
