// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package format implements the prompt and completion formatting helpers
// shared by the provider clients: task-name extraction, prompt-ending
// normalization and YAML post-processing of raw model output.
package format

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var taskNameRe = regexp.MustCompile(`^\s*-\s*name\s*:\s*(.+?)\s*$`)

// lastLine returns the final non-empty line of the prompt.
func lastLine(prompt string) string {
	lines := strings.Split(strings.TrimRight(prompt, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

// IsMultiTaskPrompt reports whether the prompt ends in a '#'-prefixed
// multi-task comment line.
func IsMultiTaskPrompt(prompt string) bool {
	return strings.HasPrefix(strings.TrimSpace(lastLine(prompt)), "#")
}

// TaskNamesFromPrompt extracts the requested task names. Multi-task prompts
// carry them in a single comment line joined by '&'; single-task prompts
// carry one "- name:" line.
func TaskNamesFromPrompt(prompt string) []string {
	line := strings.TrimSpace(lastLine(prompt))
	if strings.HasPrefix(line, "#") {
		var names []string
		for _, part := range strings.Split(strings.TrimLeft(line, "# "), "&") {
			if name := strings.TrimSpace(part); name != "" {
				names = append(names, name)
			}
		}
		return names
	}
	if m := taskNameRe.FindStringSubmatch(line); m != nil {
		return []string{m[1]}
	}
	return nil
}

// TaskCount returns the timeout multiplier for the prompt: the number of
// requested tasks, never less than one.
func TaskCount(prompt string) int {
	if n := len(TaskNamesFromPrompt(prompt)); n > 1 {
		return n
	}
	return 1
}

// StripTaskPreamble removes the comment marker from a multi-task prompt's
// final line, leaving the bare task list the backend expects. Single-task
// prompts pass through unchanged.
func StripTaskPreamble(prompt string) string {
	if !IsMultiTaskPrompt(prompt) {
		return prompt
	}
	trimmed := strings.TrimRight(prompt, "\n")
	idx := strings.LastIndex(trimmed, "\n")
	head, tail := "", trimmed
	if idx >= 0 {
		head, tail = trimmed[:idx+1], trimmed[idx+1:]
	}
	indent := tail[:len(tail)-len(strings.TrimLeft(tail, " \t"))]
	stripped := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(tail), "#"))
	return head + indent + stripped + "\n"
}

// UnifyPromptEnding normalizes trailing whitespace so every prompt ends in
// exactly one newline.
func UnifyPromptEnding(prompt string) string {
	return strings.TrimRight(prompt, " \t\n") + "\n"
}

// ExtractTasks pulls the YAML task list out of raw model output. Chat-tuned
// models wrap the tasks in prose; this finds the list, validates it as YAML
// and re-serializes just the tasks. When no parseable task list is found the
// trimmed raw text is returned as-is.
func ExtractTasks(raw string) string {
	trimmed := strings.TrimSpace(raw)

	start := strings.Index(trimmed, "- name:")
	if start < 0 {
		return trimmed
	}
	candidate := trimmed[start:]

	// Drop trailing prose: keep only lines that still belong to the list.
	var kept []string
	for _, line := range strings.Split(candidate, "\n") {
		t := strings.TrimSpace(line)
		if kept != nil && t != "" && !strings.HasPrefix(line, " ") && !strings.HasPrefix(t, "-") && !strings.HasPrefix(t, "#") {
			break
		}
		kept = append(kept, line)
	}
	candidate = strings.Join(kept, "\n")

	var tasks []map[string]interface{}
	if err := yaml.Unmarshal([]byte(candidate), &tasks); err != nil || len(tasks) == 0 {
		return trimmed
	}
	out, err := yaml.Marshal(tasks)
	if err != nil {
		return trimmed
	}
	return strings.TrimRight(string(out), "\n")
}
