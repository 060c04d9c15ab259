// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:build !unix

package node

// IgnoreSigpipe blocks forever: there is no SIGPIPE to ignore.
func IgnoreSigpipe() {
	select {}
}
