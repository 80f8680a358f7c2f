package corpus

import (
	"testing"

	"github.com/minios-linux/transmerge/idhash"
	"github.com/minios-linux/transmerge/plural"
	"github.com/minios-linux/transmerge/stats"
)

func TestUnitState(t *testing.T) {
	tests := []struct {
		name       string
		unit       Unit
		translated bool
		fuzzy      bool
	}{
		{name: "empty", unit: Unit{Source: "a"}},
		{name: "translated", unit: Unit{Source: "a", Target: "b"}, translated: true},
		{name: "fuzzy", unit: Unit{Source: "a", Target: "b", Fuzzy: true}, fuzzy: true},
		{name: "fuzzy without target", unit: Unit{Source: "a", Fuzzy: true}, fuzzy: true},
	}
	for _, tc := range tests {
		if got := tc.unit.IsTranslated(); got != tc.translated {
			t.Fatalf("%s: IsTranslated() = %v, want %v", tc.name, got, tc.translated)
		}
		if got := tc.unit.IsFuzzy(); got != tc.fuzzy {
			t.Fatalf("%s: IsFuzzy() = %v, want %v", tc.name, got, tc.fuzzy)
		}
	}
}

func TestUnitIdentityIgnoresTarget(t *testing.T) {
	a := Unit{Source: "Open", Context: "menu"}
	b := Unit{Source: "Open", Context: "menu", Target: "Öffnen", Fuzzy: true}
	if a.IDHash() != b.IDHash() {
		t.Fatal("identity must not depend on target or fuzzy state")
	}
	if a.IDHash() != idhash.Compute("Open", "menu") {
		t.Fatal("IDHash does not match idhash.Compute")
	}
	if a.Checksum() != idhash.ToChecksum(a.IDHash()) {
		t.Fatal("Checksum does not match ToChecksum(IDHash)")
	}
}

func TestUnitPluralForms(t *testing.T) {
	u := Unit{
		Source: plural.Join([]string{"%d file", "%d files"}),
		Target: plural.Join([]string{"%d Datei", "%d Dateien"}),
	}
	if !u.IsPlural() {
		t.Fatal("IsPlural() = false, want true")
	}
	if forms := u.TargetForms(); len(forms) != 2 || forms[1] != "%d Dateien" {
		t.Fatalf("TargetForms() = %q", forms)
	}
	if forms := u.SourceForms(); len(forms) != 2 || forms[0] != "%d file" {
		t.Fatalf("SourceForms() = %q", forms)
	}
}

func TestTranslationRecompute(t *testing.T) {
	tr := &Translation{
		Language: "de",
		Units: []*Unit{
			{Source: "a", Target: "A"},
			{Source: "b", Target: "B", Fuzzy: true},
			{Source: "c"},
			{Source: "d"},
		},
	}
	got := tr.Recompute()
	want := stats.Counts{Translated: 1, Fuzzy: 1, Total: 4}
	if got != want || tr.Stats != want {
		t.Fatalf("Recompute() = %+v, Stats = %+v, want %+v", got, tr.Stats, want)
	}
	if tr.Percent() != 25.0 {
		t.Fatalf("Percent() = %v, want 25", tr.Percent())
	}
}

func TestDistinctTargets(t *testing.T) {
	units := []*Unit{
		{Source: "a", Target: "x"},
		{Source: "b", Target: "y"},
		{Source: "c", Target: "x"},
		{Source: "d", Target: ""},
		{Source: "e", Target: ""},
	}
	got := DistinctTargets(units)
	if len(got) != 3 {
		t.Fatalf("DistinctTargets() len = %d, want 3", len(got))
	}
	if got[0].Source != "a" || got[1].Source != "b" || got[2].Source != "d" {
		t.Fatalf("DistinctTargets() kept wrong units: %q %q %q", got[0].Source, got[1].Source, got[2].Source)
	}
}
