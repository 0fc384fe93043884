package main

import (
	"strings"

	"github.com/spf13/pflag"
)

// Overrides apply only to flags set on the command line.

func overrideString(fs *pflag.FlagSet, name string, dst *string) {
	if fs.Changed(name) {
		if v, err := fs.GetString(name); err == nil {
			*dst = strings.TrimSpace(v)
		}
	}
}

func overrideFloat(fs *pflag.FlagSet, name string, dst *float64) {
	if fs.Changed(name) {
		if v, err := fs.GetFloat64(name); err == nil {
			*dst = v
		}
	}
}

func overrideInt(fs *pflag.FlagSet, name string, dst *int) {
	if fs.Changed(name) {
		if v, err := fs.GetInt(name); err == nil {
			*dst = v
		}
	}
}

func overrideStrings(fs *pflag.FlagSet, name string, dst *[]string) {
	if fs.Changed(name) {
		if v, err := fs.GetStringSlice(name); err == nil && len(v) > 0 {
			*dst = v
		}
	}
}
