// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grailbio/base/traverse"
	"github.com/grailbio/remote/errors"
)

// Resolve returns the JSON encoded values of args, waiting on exec
// for the objects named by Ref arguments. Refs are resolved
// concurrently. If a referenced object holds an error, Resolve fails
// with that error.
func Resolve(ctx context.Context, exec Executor, args []Arg) ([]json.RawMessage, error) {
	vals := make([]json.RawMessage, len(args))
	err := traverse.Each(len(args), func(i int) error {
		arg := args[i]
		if arg.Ref == "" {
			vals[i] = arg.Value
			return nil
		}
		id, err := ParseObjectID(arg.Ref)
		if err != nil {
			return errors.E(fmt.Sprintf("argument %d", i), errors.Invalid, err)
		}
		res, err := exec.Result(ctx, id)
		if err != nil {
			return errors.E(fmt.Sprintf("argument %d", i), id, err)
		}
		if res.Err != nil {
			return errors.E(fmt.Sprintf("argument %d", i), id, res.Err)
		}
		vals[i] = res.Value
		return nil
	})
	if err != nil {
		return nil, errors.E("resolve", err)
	}
	return vals, nil
}
