// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*
	Package remote implements a small runtime for asynchronous remote
	execution. Programs submit functions for remote execution and
	instantiate stateful remote objects ("actors") whose methods are
	invoked asynchronously. Every submission returns a Ref, a future
	for the submission's result.

	Because Go cannot serialize code to be sent over the wire, remote
	code is named rather than shipped: functions and actor classes are
	registered under global names with Func and Class, and every
	process participating in a computation runs the same binary. If
	funcs and classes are declared as package-level variables, the
	registry is complete before main runs:

		var label = remote.Func("label", func(i *big.Int) string {
			return fmt.Sprintf("the label of %s", i)
		})

		ref := label.Remote(ctx, big.NewInt(9))
		var s string
		if err := ref.Get(ctx, &s); err != nil {
			...
		}

	Submissions are handled by the Executor carried in the context (see
	WithExecutor). Package local provides an in-process executor;
	package client provides an executor that forwards submissions to a
	node serving package server's REST API.

	Arguments and results are JSON encoded in both cases, so that code
	behaves the same whether it runs in-process or on a node. Refs may
	themselves be passed as arguments: the executor resolves them
	before invoking the dependent call, and the failure of a dependency
	fails the dependent call.

	Functions and methods may take a leading context.Context argument.
	The context carries the executor, so remote code may itself submit
	further work.
*/
package remote
