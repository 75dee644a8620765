// Package ci reads the CI environment: triggering commits, ref and debug mode.
package ci

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// RegenerateTrigger in any pushed commit message forces a cold run.
const RegenerateTrigger = "[regenerate cache]"

// Env describes the CI run.
type Env struct {
	// Ref is the branch or tag the run belongs to.
	Ref string
	// BaseRef is set when a new branch was created from another one.
	BaseRef string
	// Debug is true when the runner has step debugging enabled.
	Debug    bool
	Messages []string
}

type event struct {
	Created bool   `json:"created"`
	BaseRef string `json:"base_ref"`
	Commits []struct {
		Message string `json:"message"`
	} `json:"commits"`
	HeadCommit *struct {
		Message string `json:"message"`
	} `json:"head_commit"`
}

// FromEnvironment reads the environment through getenv. A missing or
// unreadable event payload leaves Messages empty.
func FromEnvironment(getenv func(string) string) (Env, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	env := Env{
		Ref:   getenv("GITHUB_REF"),
		Debug: getenv("RUNNER_DEBUG") == "1",
	}
	if env.Ref == "" {
		env.Ref = "local"
	}

	path := getenv("GITHUB_EVENT_PATH")
	if path == "" {
		return env, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return env, fmt.Errorf("ci: read event: %w", err)
	}
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		return env, fmt.Errorf("ci: decode event: %w", err)
	}
	for _, c := range ev.Commits {
		env.Messages = append(env.Messages, c.Message)
	}
	if len(env.Messages) == 0 && ev.HeadCommit != nil {
		env.Messages = append(env.Messages, ev.HeadCommit.Message)
	}
	if ev.Created && ev.BaseRef != "" {
		env.BaseRef = ev.BaseRef
	}
	return env, nil
}

// CommitMessageIncludes reports whether any commit message contains s, ignoring case.
func (e Env) CommitMessageIncludes(s string) bool {
	s = strings.ToLower(s)
	for _, m := range e.Messages {
		if strings.Contains(strings.ToLower(m), s) {
			return true
		}
	}
	return false
}

// RegenerateRequested reports whether a commit asked for a cold run.
func (e Env) RegenerateRequested() bool {
	return e.CommitMessageIncludes(RegenerateTrigger)
}

// RestoreRef returns the ref whose cache should be restored: the base ref of
// a freshly created branch, otherwise the current ref.
func (e Env) RestoreRef() string {
	if e.BaseRef != "" {
		return e.BaseRef
	}
	return e.Ref
}
