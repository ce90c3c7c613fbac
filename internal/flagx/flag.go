// Package flagx contains helpers for components that parse only a subset of
// the process's command-line flags without tripping over flags owned by
// other components.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns a slice of command-line arguments that only contains
// the allowed flags (and their values) specified in allowedFlags.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -e .env
//  2. Flag and value combined with '=':      --env-file=.env
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--flag=value" / "-f=value" form
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		// flag as a separate argument, value may follow
		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// EnvFileFlag extracts the .env file path provided via -e or -env-file.
// Only these flags are parsed; other arguments are ignored, so the caller
// can run this before the main flag set is defined. Returns "" when the
// flag is absent.
func EnvFileFlag() string {
	var path string

	args := FilterArgs(os.Args[1:], []string{"-e", "-env-file"})

	fs := flag.NewFlagSet("envfile", flag.ContinueOnError)
	fs.StringVar(&path, "env-file", "", "Path to .env file")
	fs.StringVar(&path, "e", "", "Path to .env file (short)")
	_ = fs.Parse(args)

	return path
}
