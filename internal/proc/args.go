package proc

import (
	"github.com/kingrea/fpgaflow/internal/value"
)

// OptionArgs converts named options into a flag list in mapping order:
// {"foo": "bar", "flag": []} becomes ["--foo", "bar", "--flag"]. An
// explicitly empty sequence emits the bare flag.
func OptionArgs(opts *value.Mapping) []string {
	args := make([]string, 0, opts.Len()*2)
	for _, key := range opts.Keys() {
		args = append(args, "--"+key)
		v, _ := opts.Get(key)
		if v.IsSequence() && v.Len() == 0 {
			continue
		}
		args = append(args, v.String())
	}
	return args
}

// NoisyWarnings returns the environment override that points the packer's
// noisy warning log at a per-device file.
func NoisyWarnings(device string) map[string]string {
	return map[string]string{
		"OUR_NOISY_WARNINGS": "noisy_warnings-" + device + "_pack.log",
	}
}
