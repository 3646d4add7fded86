package reliability

import (
	"fmt"
	"strings"
)

// FailureStrategy decides what a guard does when its backing store is unavailable.
type FailureStrategy string

const (
	FailOpen   FailureStrategy = "fail_open"
	FailClosed FailureStrategy = "fail_closed"
)

// ParseFailureStrategy accepts fail_open/fail_closed, also spelled with a dash or upper case.
func ParseFailureStrategy(s string) (FailureStrategy, error) {
	switch FailureStrategy(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")) {
	case FailOpen:
		return FailOpen, nil
	case FailClosed:
		return FailClosed, nil
	}
	return "", fmt.Errorf("unknown failure strategy %q", s)
}

// ShouldAllow determines if we should proceed given an error and a strategy.
// An unknown strategy behaves as fail open.
func ShouldAllow(strategy FailureStrategy, err error) bool {
	if err == nil {
		return true
	}
	return strategy != FailClosed
}
