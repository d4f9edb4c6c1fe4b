package signatures

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMatchesIsCaseInsensitiveSubstring(t *testing.T) {
	cases := []struct {
		text string
		kws  []string
		want bool
	}{
		{"Wurst-Client.jar", []string{"wurst"}, true},
		{"wurst", []string{"WURST"}, true},
		{"javaw.exe", []string{"wurst"}, false},
		{"", []string{"wurst"}, false},
		{"anything", []string{""}, false},
		{"KamiBlue", []string{"kami", "blue"}, true},
	}
	for _, tc := range cases {
		if got := Matches(tc.text, tc.kws); got != tc.want {
			t.Errorf("Matches(%q, %v) = %v, want %v", tc.text, tc.kws, got, tc.want)
		}
	}
}

func TestDefaultPartitionsByPlatform(t *testing.T) {
	db := Default()

	java := db.Lookup(Java)
	bedrock := db.Lookup(Bedrock)
	if len(java) != 8 {
		t.Fatalf("java signatures = %d, want 8", len(java))
	}
	if len(bedrock) != 4 {
		t.Fatalf("bedrock signatures = %d, want 4", len(bedrock))
	}
	if len(db.Combined()) != 12 || db.Size() != 12 {
		t.Fatalf("combined = %d, want 12", len(db.Combined()))
	}
	for _, s := range java {
		if s.Label == "Horion" {
			t.Fatal("bedrock label leaked into java")
		}
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	db := Default()
	sigs := db.Lookup(Bedrock)
	sigs[0].Keywords[0] = "mutated"
	sigs[0].Label = "mutated"

	again := db.Lookup(Bedrock)
	if again[0].Label == "mutated" || again[0].Keywords[0] == "mutated" {
		t.Fatal("database was mutated through a returned slice")
	}
}

func TestCombinedMergesSharedLabels(t *testing.T) {
	db := New(map[Platform]map[string][]string{
		Java:    {"Shared": {"alpha"}},
		Bedrock: {"Shared": {"Beta", "alpha"}},
	})
	combined := db.Combined()
	if len(combined) != 1 {
		t.Fatalf("combined = %+v", combined)
	}
	if got := combined[0].Keywords; len(got) != 2 || got[0] != "alpha" || got[1] != "beta" {
		t.Fatalf("keywords = %v", got)
	}
}

func TestParsePlatform(t *testing.T) {
	if p, err := ParsePlatform(" Java "); err != nil || p != Java {
		t.Fatalf("ParsePlatform(java) = %v, %v", p, err)
	}
	if _, err := ParsePlatform("pocket"); err == nil {
		t.Fatal("expected error for unknown platform")
	}
}

func TestLoadOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigs.yaml")
	body := "java:\n  Meteor: [meteor]\nbedrock:\n  Packet: [packet, PKT]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	db, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := db.Lookup(Java); len(got) != 1 || got[0].Label != "Meteor" {
		t.Fatalf("java = %+v", got)
	}
	if got := db.Lookup(Bedrock); len(got) != 1 || got[0].Keywords[1] != "pkt" {
		t.Fatalf("bedrock = %+v", got)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"unknown-platform.yaml": "pocket:\n  X: [x]\n",
		"empty-keywords.yaml":   "java:\n  X: []\n",
		"empty.yaml":            "",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadEmptyPathIsDefault(t *testing.T) {
	db, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if db.Size() != Default().Size() {
		t.Fatal("expected built-in database")
	}
}
