package microcode

import "testing"

func TestROMHasExactlyNumWordsEntries(t *testing.T) {
	if len(ROM) != NumWords {
		t.Fatalf("expected %d words, got %d", NumWords, len(ROM))
	}
}

func TestUnmappedSlotsFallBackToGenericFetch(t *testing.T) {
	if ROM[0x100] != genericFetch {
		t.Fatalf("expected unmapped slot to hold genericFetch")
	}
}

func TestDocumentedInstructionSlotsAreWired(t *testing.T) {
	for slot, want := range instructionPrograms {
		if ROM[slot] != want {
			t.Fatalf("slot %#x: expected %#x, got %#x", slot, want, ROM[slot])
		}
	}
}
