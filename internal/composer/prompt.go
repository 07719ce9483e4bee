// Package composer assembles the generation prompt from a user query and
// the retrieved employee records.
package composer

import (
	"fmt"
	"strings"

	"github.com/kalambet/rosterbot/internal/roster"
)

// Instructions is the fixed system block placed ahead of every query.
const Instructions = "You are an intelligent HR assistant. Your task is to help managers find the best employees " +
	"for a project based on their query and the provided employee profiles. Analyze the user's query and the " +
	"context below. Synthesize the information to provide a helpful, natural language recommendation. " +
	"Highlight the key strengths of each recommended candidate as they relate to the query. " +
	"If a candidate's availability is 'on_project', mention this as a potential constraint."

// RecordSeparator sits between formatted records in the context block.
const RecordSeparator = "\n---\n"

// BuildContext formats employees in the given order and joins them with
// RecordSeparator. An empty slice yields an empty context.
func BuildContext(employees []roster.Employee) (string, error) {
	docs, err := roster.FormatAll(employees)
	if err != nil {
		return "", fmt.Errorf("building context: %w", err)
	}
	return strings.Join(docs, RecordSeparator), nil
}

// UserMessage renders the query and a prebuilt context block.
func UserMessage(query, context string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User Query: '%s'\n\n", query)
	sb.WriteString("Here are the most relevant employee profiles I found:\n")
	sb.WriteString("---CONTEXT---\n")
	sb.WriteString(context)
	sb.WriteString("\n---END CONTEXT---\n")
	sb.WriteString("Based on this, please provide your recommendation.")
	return sb.String()
}

// BuildPrompt returns the full single-string prompt: Instructions, a blank
// line, then the user message.
func BuildPrompt(query string, employees []roster.Employee) (string, error) {
	context, err := BuildContext(employees)
	if err != nil {
		return "", err
	}
	return Instructions + "\n\n" + UserMessage(query, context), nil
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
