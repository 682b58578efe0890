// Package history is the append-only, prompt-name-indexed log of every
// model call made during one document's evaluation. It backs the
// dependency resolution that feeds earlier conclusions into later rules.
package history

import (
	"strings"
	"sync"
	"time"

	"github.com/arbes-ai/evaluator/internal/textclean"
	"github.com/rs/zerolog"
)

// Interaction is one recorded prompt/response exchange. Immutable once
// recorded.
type Interaction struct {
	SequenceNumber int       `json:"sequence_number"`
	Model          string    `json:"model"`
	Timestamp      time.Time `json:"timestamp"`
	PromptName     string    `json:"prompt_name"`
	Prompt         string    `json:"prompt"`
	Response       string    `json:"response"`
	History        []string  `json:"history,omitempty"`
}

// Store holds interactions keyed by prompt name, in insertion order.
// One store lives exactly as long as one document's evaluation. Batch
// workers record concurrently, so every accessor holds the lock.
type Store struct {
	mu       sync.Mutex
	byName   map[string][]Interaction
	order    []string
	sequence int
	logger   *zerolog.Logger
}

// NewStore returns an empty store.
func NewStore(logger *zerolog.Logger) *Store {
	return &Store{
		byName: make(map[string][]Interaction),
		logger: logger,
	}
}

// Add cleans the prompt and response, assigns the next sequence number
// and appends the interaction under promptName. An empty promptName
// falls back to the prompt text itself.
func (s *Store) Add(model, prompt, response, promptName string, history []string) Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sequence++
	name := promptName
	if name == "" {
		name = prompt
	}
	in := Interaction{
		SequenceNumber: s.sequence,
		Model:          model,
		Timestamp:      time.Now(),
		PromptName:     name,
		Prompt:         textclean.CleanPrompt(prompt),
		Response:       textclean.CleanResponse(response),
		History:        history,
	}
	if _, ok := s.byName[name]; !ok {
		s.order = append(s.order, name)
	}
	s.byName[name] = append(s.byName[name], in)
	return in
}

// Latest returns the most recent interaction recorded under name.
func (s *Store) Latest(name string) (Interaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latestLocked(name)
}

func (s *Store) latestLocked(name string) (Interaction, bool) {
	list := s.byName[name]
	if len(list) == 0 {
		return Interaction{}, false
	}
	return list[len(list)-1], true
}

// All returns every interaction in sequence order.
func (s *Store) All() []Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Interaction
	for _, name := range s.order {
		out = append(out, s.byName[name]...)
	}
	// insertion order within names is sequence order; across names it is
	// first-appearance order, so a final sort keeps the contract exact
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].SequenceNumber > out[j].SequenceNumber; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// Len returns the number of recorded interactions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequence
}

// ResolveDependencies renders the latest interaction for every named
// dependency as <interaction> blocks, resolving each dependency's own
// declared history first. The walk is depth-first and visits each prompt
// name at most once, so cyclic or repeated references terminate.
func (s *Store) ResolveDependencies(names []string) string {
	if len(names) == 0 {
		return ""
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	visited := make(map[string]bool)
	var blocks []string
	for _, name := range names {
		s.resolve(name, visited, &blocks)
	}
	if len(blocks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("<conversation_history>\n")
	b.WriteString(strings.Join(blocks, "\n"))
	b.WriteString("\n</conversation_history>\n")
	return b.String()
}

func (s *Store) resolve(name string, visited map[string]bool, blocks *[]string) {
	if visited[name] {
		return
	}
	visited[name] = true

	in, ok := s.latestLocked(name)
	if !ok {
		s.logger.Warn().Str("prompt_name", name).Msg("no recorded interaction for dependency")
		return
	}

	// transitive dependencies render before the interaction that needs them
	for _, dep := range in.History {
		s.resolve(dep, visited, blocks)
	}

	var b strings.Builder
	b.WriteString("<interaction prompt_name='" + in.PromptName + "'>\n")
	b.WriteString("USER: " + in.Prompt + "\n")
	b.WriteString("SYSTEM: " + in.Response + "\n")
	b.WriteString("</interaction>")
	*blocks = append(*blocks, b.String())
}
