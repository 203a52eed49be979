// Package debug provides assertion helpers that panic loudly on failure.
// They are active in every build; there is no build tag that compiles them out.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package debug

import "fmt"

// Assert panics with msg (if any) when cond is false. Hot-path callers must
// only ever call this with conditions that are true by construction; an
// assertion failure here means a programming error, an invariant breach,
// not a data-dependent runtime condition.
func Assert(cond bool, msg ...any) {
	if !cond {
		panic(fmt.Sprint("assertion failed: ", fmt.Sprint(msg...)))
	}
}

func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panic(err)
	}
}
