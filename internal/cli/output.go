// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avelarcompany/gateway/internal/identity"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// render writes value as JSON or YAML. Text output is left to the caller,
// which reports false so it can print its own table.
func render(out io.Writer, format string, value any) (bool, error) {
	switch format {
	case formatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(value)

	case formatYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		if err := encoder.Encode(value); err != nil {
			return true, err
		}
		return true, encoder.Close()

	case formatText, "":
		return false, nil

	default:
		return true, fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

// table returns a tab-aligned writer. Call Flush when done.
func table(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

// readUser loads a user snapshot from a file, or from stdin when path is "-".
// A full {token, user} session body is accepted as well.
func readUser(in io.Reader, path string) (*identity.User, error) {
	if path == "" {
		return nil, fmt.Errorf("--user is required")
	}

	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(in)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read user snapshot: %w", err)
	}

	var wrapped struct {
		User *identity.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}

	user := &identity.User{}
	if err := json.Unmarshal(raw, user); err != nil {
		return nil, fmt.Errorf("parse user snapshot: %w", err)
	}
	return user, nil
}

func parseDuration(value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", value, err)
	}
	return duration, nil
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
