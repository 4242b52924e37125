// Package prompt builds the instruction strings sent to LLM providers. All
// builders are pure: same inputs, same string, no I/O.
package prompt

import (
	"fmt"
	"strings"
)

// Mode selects the framing boilerplate. Question content is unaffected.
type Mode string

const (
	// ModeStandard asks for thorough, structured answers.
	ModeStandard Mode = "standard"
	// ModeMicro asks for short answers, two to three sentences per question.
	ModeMicro Mode = "micro"
)

const standardFraming = `You are an experienced editorial analyst. Answer each numbered question
about the text below with a clear, structured assessment. Ground every answer
in specific evidence from the text. Number your answers to match the
questions.`

const microFraming = `You are an experienced editorial analyst. Answer each numbered question
about the text below in two to three sentences. Be direct and specific.
Number your answers to match the questions.`

const summaryFraming = `You are an experienced editorial analyst. Write a concise summary of the
text below: what it is, what it attempts, and its most notable strengths and
weaknesses. Do not exceed three paragraphs.`

// Questions renders the complete instruction for one question batch. The
// optional context block precedes the text; questions are enumerated from 1.
func Questions(text string, questions []string, context string, mode Mode) string {
	framing := standardFraming
	if mode == ModeMicro {
		framing = microFraming
	}

	var b strings.Builder
	b.WriteString(framing)
	b.WriteString("\n\n")
	if strings.TrimSpace(context) != "" {
		b.WriteString("Additional context from the author:\n")
		b.WriteString(strings.TrimSpace(context))
		b.WriteString("\n\n")
	}
	b.WriteString("Text to analyze:\n---\n")
	b.WriteString(text)
	b.WriteString("\n---\n\nQuestions:\n")
	for i, q := range questions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	return b.String()
}

// Summary renders the instruction for the summary phase.
func Summary(text string) string {
	var b strings.Builder
	b.WriteString(summaryFraming)
	b.WriteString("\n\nText to analyze:\n---\n")
	b.WriteString(text)
	b.WriteString("\n---\n")
	return b.String()
}
