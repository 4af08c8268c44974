package command

import (
	"strings"
	"testing"

	"github.com/jperram92/JamesConvoBot/internal/transcript"
)

func entry(text string) transcript.Entry {
	return transcript.Entry{Seq: 1, Text: text, Status: transcript.StatusOK}
}

func TestRecognizeVerbs(t *testing.T) {
	tests := []struct {
		text    string
		verb    Verb
		arg     string
	}{
		{"augment mute", VerbMute, ""},
		{"Augment, unmute!", VerbUnmute, ""},
		{"augment record", VerbRecord, ""},
		{"augment stop recording", VerbStopRecording, ""},
		{"augment transcribe", VerbTranscribe, ""},
		{"augment stop transcribing", VerbStopTranscribing, ""},
		{"augment leave", VerbLeave, ""},
		{"augment help", VerbHelp, ""},
		{"augment status", VerbStatus, ""},
		{"augment list participants", VerbListParticipants, ""},
		{"augment take notes", VerbTakeNotes, ""},
		{"augment summarize", VerbSummarize, ""},
		{"AUGMENT SUMMARIZE", VerbSummarize, ""},
		{"okay augment what is the capital of France", VerbQuery, "what is the capital of france"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			r := New()
			cmd, ok := r.Recognize(entry(tt.text))
			if !ok {
				t.Fatalf("Recognize(%q) not recognized", tt.text)
			}
			if cmd.Verb != tt.verb {
				t.Errorf("Verb = %q, want %q", cmd.Verb, tt.verb)
			}
			if cmd.Argument != tt.arg {
				t.Errorf("Argument = %q, want %q", cmd.Argument, tt.arg)
			}
		})
	}
}

func TestLongestVerbWins(t *testing.T) {
	r := New()
	cmd, ok := r.Recognize(entry("augment stop recording"))
	if !ok || cmd.Verb != VerbStopRecording {
		t.Errorf("got %v/%v, want stop recording", cmd.Verb, ok)
	}
	r2 := New()
	cmd, ok = r2.Recognize(entry("augment record"))
	if !ok || cmd.Verb != VerbRecord {
		t.Errorf("got %v/%v, want record", cmd.Verb, ok)
	}
}

func TestIgnoresEntriesWithoutTrigger(t *testing.T) {
	r := New()
	if _, ok := r.Recognize(entry("let's mute the discussion for now")); ok {
		t.Error("recognized command without trigger word")
	}
}

func TestIgnoresNonOKEntries(t *testing.T) {
	r := New()
	e := transcript.Entry{Seq: 1, Text: "augment mute", Status: transcript.StatusTimeout}
	if _, ok := r.Recognize(e); ok {
		t.Error("recognized command in a timeout entry")
	}
	e.Status = transcript.StatusError
	if _, ok := r.Recognize(e); ok {
		t.Error("recognized command in an error entry")
	}
}

func TestIgnoresBareTrigger(t *testing.T) {
	r := New()
	if _, ok := r.Recognize(entry("augment")); ok {
		t.Error("bare trigger produced a command")
	}
}

func TestPhoneticTriggerMatch(t *testing.T) {
	r := New()
	// Common STT renderings of "augment".
	for _, text := range []string{"augmint mute", "ogment mute"} {
		c, ok := r.Recognize(entry(text))
		if !ok {
			t.Errorf("Recognize(%q): phonetic trigger not matched", text)
			continue
		}
		if c.Verb != VerbMute {
			t.Errorf("Recognize(%q): verb = %q, want mute", text, c.Verb)
		}
	}
}

func TestPhoneticMatchingDisabled(t *testing.T) {
	r := New(WithoutPhoneticMatching())
	if _, ok := r.Recognize(entry("augmint mute")); ok {
		t.Error("phonetic match accepted with matching disabled")
	}
	if _, ok := r.Recognize(entry("augment mute")); !ok {
		t.Error("exact trigger rejected")
	}
}

func TestDedupeRepeatedUtterance(t *testing.T) {
	r := New()
	if _, ok := r.Recognize(entry("augment mute")); !ok {
		t.Fatal("first utterance not recognized")
	}
	if _, ok := r.Recognize(entry("augment mute")); ok {
		t.Error("verbatim repeat was not deduplicated")
	}
	if _, ok := r.Recognize(entry("augment unmute")); !ok {
		t.Error("different utterance was rejected after dedupe")
	}
}

func TestCustomTriggerAndAliases(t *testing.T) {
	r := New(
		WithTrigger("jarvis"),
		WithAliases(VerbSummarize, "wrap up"),
	)
	cmd, ok := r.Recognize(entry("jarvis wrap up"))
	if !ok || cmd.Verb != VerbSummarize {
		t.Errorf("alias: got %v/%v, want summarize", cmd.Verb, ok)
	}
	if _, ok := r.Recognize(entry("augment mute")); ok {
		t.Error("default trigger matched after replacement")
	}
}

func TestQueryCarriesEntrySeqAndTransient(t *testing.T) {
	r := New()
	e := transcript.Entry{Seq: 42, Text: "augment what time is it", Status: transcript.StatusOK, Transient: true}
	cmd, ok := r.Recognize(e)
	if !ok {
		t.Fatal("query not recognized")
	}
	if cmd.EntrySeq != 42 || !cmd.Transient {
		t.Errorf("cmd = %+v, want EntrySeq 42, Transient true", cmd)
	}
}

func TestHelpTextListsAllVerbs(t *testing.T) {
	text := HelpText("augment")
	for _, g := range grammar {
		if !strings.Contains(text, g.Phrase) {
			t.Errorf("help text missing %q", g.Phrase)
		}
	}
}

func TestSetTriggerSwapsWakeWord(t *testing.T) {
	r := New()
	r.SetTrigger("Jarvis")

	if _, ok := r.Recognize(entry("augment mute")); ok {
		t.Error("old trigger still recognized after SetTrigger")
	}
	cmd, ok := r.Recognize(entry("jarvis mute"))
	if !ok || cmd.Verb != VerbMute {
		t.Errorf("got %v/%v, want mute via new trigger", cmd.Verb, ok)
	}
	if r.Trigger() != "jarvis" {
		t.Errorf("Trigger() = %q, want jarvis", r.Trigger())
	}

	// Blank and multi-word values are rejected, keeping the current trigger.
	r.SetTrigger("")
	r.SetTrigger("two words")
	if r.Trigger() != "jarvis" {
		t.Errorf("Trigger() = %q after bad SetTrigger values, want jarvis", r.Trigger())
	}
}
