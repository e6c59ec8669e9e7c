package main

import (
	"strings"
)

// stringList is a semicolon separated flag value.
type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ";")
}

func (l *stringList) Set(value string) error {
	for _, v := range strings.Split(value, ";") {
		if v = strings.TrimSpace(v); v != "" {
			*l = append(*l, v)
		}
	}
	return nil
}
