// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package squarer

import (
	"math/big"
	"strings"

	"github.com/grailbio/remote/errors"
)

// ParseArg parses a command line integer argument. Surrounding
// whitespace and a leading sign are allowed, and digits may be
// grouped by single underscores, as in "1_000".
func ParseArg(arg string) (*big.Int, error) {
	s := strings.TrimSpace(arg)
	digits := s
	if strings.HasPrefix(digits, "+") || strings.HasPrefix(digits, "-") {
		digits = digits[1:]
	}
	if !validDigits(digits) {
		return nil, errors.E("squarer", errors.Invalid, errors.Errorf("invalid integer %q", arg))
	}
	n, ok := new(big.Int).SetString(strings.Replace(s, "_", "", -1), 10)
	if !ok {
		return nil, errors.E("squarer", errors.Invalid, errors.Errorf("invalid integer %q", arg))
	}
	return n, nil
}

// validDigits tells whether s is a nonempty run of decimal digits in
// which each underscore sits between two digits.
func validDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case '0' <= c && c <= '9':
		case c == '_':
			if i == 0 || i == len(s)-1 || s[i-1] == '_' {
				return false
			}
		default:
			return false
		}
	}
	return true
}
