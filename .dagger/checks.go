package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dagger/chatrelay/internal/dagger"
)

// sourceCheck is one static check run over the source tree. fix is the
// command a developer runs locally to make it pass.
type sourceCheck struct {
	name   string
	script string
	fix    string
}

var sourceChecks = []sourceCheck{
	{
		name:   "go.mod and go.sum are tidy",
		script: "cp go.mod /tmp/go.mod && cp go.sum /tmp/go.sum && go mod tidy && diff -u /tmp/go.mod go.mod && diff -u /tmp/go.sum go.sum",
		fix:    "go mod tidy",
	},
	{
		name:   "sources are gofmt'd",
		script: `out=$(gofmt -l cmd cli pkg proxy api) && test -z "$out" || { echo "$out"; exit 1; }`,
		fix:    "gofmt -w cmd cli pkg proxy api",
	},
	{
		name:   "go vet is clean",
		script: "go vet ./...",
		fix:    "go vet ./...",
	},
}

// Check runs the static source checks in order and stops at the first
// failure.
//
// +check
func (c *ChatRelay) Check(ctx context.Context) (string, error) {
	ctr := c.goContainer()
	passed := make([]string, 0, len(sourceChecks))

	for _, check := range sourceChecks {
		_, err := ctr.WithExec([]string{"sh", "-c", check.script}).Sync(ctx)

		var e *dagger.ExecError
		if errors.As(err, &e) {
			return "", fmt.Errorf("%s: failed, run '%s'\n\n%s%s", check.name, check.fix, e.Stdout, e.Stderr)
		} else if err != nil {
			return "", fmt.Errorf("%s: %w", check.name, err)
		}

		passed = append(passed, "ok: "+check.name)
	}

	return strings.Join(passed, "\n"), nil
}
