package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/fpgaflow/internal/module"
)

// keyValueFlag collects repeatable key=value module param overrides.
type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(*kv))
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("override key is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = val
	return nil
}

func (kv *keyValueFlag) Type() string {
	return "key=value"
}

// apply layers the overrides onto params. Values are decoded as YAML so
// `takes=[a, b]` yields a list; undecodable values stay strings.
func (kv keyValueFlag) apply(params module.Params) module.Params {
	out := module.Params{}
	for key, val := range params {
		out[key] = val
	}
	for key, raw := range kv {
		var decoded any
		if err := yaml.Unmarshal([]byte(raw), &decoded); err != nil || decoded == nil {
			out[key] = raw
			continue
		}
		out[key] = decoded
	}
	return out
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
