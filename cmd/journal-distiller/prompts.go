package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// defaultSystemPrompt is used when -system-prompt-file is unset or unreadable.
// Replace it with your own note-writing instructions via -system-prompt-file.
const defaultSystemPrompt = `
You turn a personal forum diary into one self-contained markdown note.

The user message holds a single topic: its title, the author's own thoughts in
chronological order, and the context each thought replied to (quotes from other
members and cited quotes).

Write the note in the language of the thoughts. Keep the author's voice and
first person. Merge repeated ideas, keep concrete facts, dates and names, and
drop greetings and forum chatter. Use context only to make a thought
understandable; do not summarize other members for their own sake.

Structure:
- a short opening paragraph stating what the topic is about
- sections with level-2 headings for the main threads of thought
- a closing "Open questions" list if the author left things unresolved

Output markdown only. Do not repeat the title as a heading. Do not add links,
tags or a category line; those are appended automatically.
`

// loadSystemPrompt reads the prompt file. A missing, unreadable or blank file logs a warning
// and falls back to the built-in prompt.
func loadSystemPrompt(path string, log zerolog.Logger) string {
	if path == "" {
		return strings.TrimSpace(defaultSystemPrompt)
	}
	s, err := loadPromptFromFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("system prompt file not usable, using built-in prompt")
		return strings.TrimSpace(defaultSystemPrompt)
	}
	return s
}

func loadPromptFromFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read system prompt file: %w", err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "", errors.New("system prompt file is empty")
	}
	return s, nil
}
