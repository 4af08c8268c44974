// Package command implements trigger-word detection and verb matching on
// transcript entries.
//
// An utterance addresses the assistant when one of its tokens matches the
// configured trigger word, either exactly or phonetically (speech-to-text
// frequently mangles names, so Double Metaphone overlap plus Jaro-Winkler
// similarity is accepted as a match). The text after the trigger is matched
// against the command grammar longest-verb-first; anything that matches no
// verb becomes a free-form query for the external agent.
package command

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/jperram92/JamesConvoBot/internal/transcript"
)

// Verb identifies a recognized assistant command.
type Verb string

const (
	VerbMute             Verb = "mute"
	VerbUnmute           Verb = "unmute"
	VerbRecord           Verb = "record"
	VerbStopRecording    Verb = "stop recording"
	VerbTranscribe       Verb = "transcribe"
	VerbStopTranscribing Verb = "stop transcribing"
	VerbLeave            Verb = "leave"
	VerbHelp             Verb = "help"
	VerbStatus           Verb = "status"
	VerbListParticipants Verb = "list participants"
	VerbTakeNotes        Verb = "take notes"
	VerbSummarize        Verb = "summarize"

	// VerbQuery is the fallthrough for triggered utterances that match no
	// grammar verb: the remaining text is forwarded to the external agent.
	VerbQuery Verb = "query"
)

// Command is a recognized instruction extracted from a transcript entry.
type Command struct {
	// Verb is the matched grammar verb, or [VerbQuery].
	Verb Verb

	// Argument is the text following the verb. For VerbQuery it is the whole
	// post-trigger text.
	Argument string

	// EntrySeq is the sequence number of the transcript entry the command
	// was recognized in.
	EntrySeq uint64

	// Transient reports whether the source entry was transient.
	Transient bool
}

// DefaultTrigger is the wake word the assistant listens for.
const DefaultTrigger = "augment"

// Phonetic trigger matching: a token whose Double Metaphone code overlaps the
// trigger's counts as a match when its Jaro-Winkler similarity clears this
// threshold.
const triggerSimilarityThreshold = 0.84

// grammar lists every verb with the phrases that select it, longest phrase
// first so that "stop recording" wins over "record" and "take notes" over a
// hypothetical "take".
var grammar = []struct {
	Phrase string
	Verb   Verb
}{
	{"list participants", VerbListParticipants},
	{"stop transcribing", VerbStopTranscribing},
	{"stop recording", VerbStopRecording},
	{"take notes", VerbTakeNotes},
	{"summarize", VerbSummarize},
	{"transcribe", VerbTranscribe},
	{"unmute", VerbUnmute},
	{"record", VerbRecord},
	{"status", VerbStatus},
	{"leave", VerbLeave},
	{"mute", VerbMute},
	{"help", VerbHelp},
}

// HelpText returns the spoken help listing for all grammar verbs.
func HelpText(trigger string) string {
	var b strings.Builder
	b.WriteString("You can say " + trigger + " followed by one of: ")
	for i, g := range grammar {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(g.Phrase)
	}
	b.WriteString(". Anything else is forwarded to the assistant as a question.")
	return b.String()
}

// Option is a functional option for configuring a Recognizer.
type Option func(*Recognizer)

// WithTrigger replaces the default trigger word.
func WithTrigger(word string) Option {
	return func(r *Recognizer) {
		if word != "" {
			r.trigger = strings.ToLower(word)
		}
	}
}

// WithoutPhoneticMatching restricts trigger detection to exact token matches.
func WithoutPhoneticMatching() Option {
	return func(r *Recognizer) { r.phonetic = false }
}

// WithAliases registers extra phrases for a verb (e.g., "wrap up" for
// summarize). Aliases participate in longest-first matching alongside the
// built-in grammar.
func WithAliases(verb Verb, phrases ...string) Option {
	return func(r *Recognizer) {
		for _, p := range phrases {
			p = normalize(p)
			if p != "" {
				r.extra = append(r.extra, grammarRule{Phrase: p, Verb: verb})
			}
		}
	}
}

type grammarRule struct {
	Phrase string
	Verb   Verb
}

// Recognizer matches transcript entries against the trigger word and command
// grammar.
//
// Recognize is owned by the command worker, which processes entries strictly
// in order; the last-utterance dedupe depends on that ordering. The trigger
// word is the exception: it may be swapped at any time via [Recognizer.SetTrigger]
// (config hot reload), so it lives behind its own lock.
type Recognizer struct {
	phonetic      bool
	extra         []grammarRule
	rules         []grammarRule
	lastUtterance string

	mu          sync.RWMutex
	trigger     string
	triggerPrim string
	triggerSec  string
}

// New creates a Recognizer with the given options applied over the defaults.
func New(opts ...Option) *Recognizer {
	r := &Recognizer{
		trigger:  DefaultTrigger,
		phonetic: true,
	}
	for _, o := range opts {
		o(r)
	}
	r.triggerPrim, r.triggerSec = matchr.DoubleMetaphone(r.trigger)

	// Merge built-in grammar with aliases and order longest-first.
	r.rules = make([]grammarRule, 0, len(grammar)+len(r.extra))
	for _, g := range grammar {
		r.rules = append(r.rules, grammarRule{Phrase: g.Phrase, Verb: g.Verb})
	}
	r.rules = append(r.rules, r.extra...)
	sortRulesLongestFirst(r.rules)
	return r
}

// Trigger returns the active trigger word.
func (r *Recognizer) Trigger() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trigger
}

// SetTrigger replaces the trigger word at runtime. Empty or multi-word values
// are ignored. Safe to call while Recognize runs on another goroutine.
func (r *Recognizer) SetTrigger(word string) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" || strings.ContainsAny(word, " \t") {
		return
	}
	prim, sec := matchr.DoubleMetaphone(word)
	r.mu.Lock()
	r.trigger, r.triggerPrim, r.triggerSec = word, prim, sec
	r.mu.Unlock()
}

// Recognize inspects a transcript entry and extracts a command when the entry
// is a successful transcription containing the trigger word. Entries with a
// non-ok status, without the trigger, with nothing after the trigger, or
// repeating the previous triggered utterance verbatim are ignored.
func (r *Recognizer) Recognize(e transcript.Entry) (Command, bool) {
	if e.Status != transcript.StatusOK {
		return Command{}, false
	}

	text := normalize(e.Text)
	if text == "" {
		return Command{}, false
	}

	tokens := strings.Fields(text)
	idx := r.findTrigger(tokens)
	if idx < 0 {
		return Command{}, false
	}

	rest := strings.Join(tokens[idx+1:], " ")
	if rest == "" {
		return Command{}, false
	}

	// STT sometimes delivers the same utterance twice in a row (overlapping
	// segments). Skip exact repeats.
	if text == r.lastUtterance {
		return Command{}, false
	}
	r.lastUtterance = text

	cmd := Command{
		Verb:      VerbQuery,
		Argument:  rest,
		EntrySeq:  e.Seq,
		Transient: e.Transient,
	}
	for _, rule := range r.rules {
		if rest == rule.Phrase {
			cmd.Verb = rule.Verb
			cmd.Argument = ""
			break
		}
		if strings.HasPrefix(rest, rule.Phrase+" ") {
			cmd.Verb = rule.Verb
			cmd.Argument = strings.TrimSpace(rest[len(rule.Phrase):])
			break
		}
	}
	return cmd, true
}

// findTrigger returns the index of the first token matching the trigger word,
// or -1. The trigger is snapshotted once so a concurrent SetTrigger cannot
// split one utterance across two wake words.
func (r *Recognizer) findTrigger(tokens []string) int {
	r.mu.RLock()
	trigger, prim, sec := r.trigger, r.triggerPrim, r.triggerSec
	r.mu.RUnlock()

	for i, tok := range tokens {
		if tok == trigger {
			return i
		}
		if r.phonetic && phoneticMatch(tok, trigger, prim, sec) {
			return i
		}
	}
	return -1
}

// phoneticMatch reports whether token sounds like the trigger word: its
// Double Metaphone codes must overlap the trigger's and its Jaro-Winkler
// similarity must clear the threshold.
func phoneticMatch(token, trigger, prim, sec string) bool {
	p, s := matchr.DoubleMetaphone(token)
	overlap := (p != "" && (p == prim || p == sec)) ||
		(s != "" && (s == prim || s == sec))
	if !overlap {
		return false
	}
	return matchr.JaroWinkler(token, trigger, false) >= triggerSimilarityThreshold
}

// normalize lowercases, strips punctuation, and collapses whitespace.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case r == '\'':
			// keep apostrophes so "what's" survives
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// sortRulesLongestFirst orders rules by descending phrase length so prefixes
// never shadow longer phrases.
func sortRulesLongestFirst(rules []grammarRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].Phrase) > len(rules[j].Phrase)
	})
}
