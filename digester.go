// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package remote

import (
	"crypto"
	_ "crypto/sha256"

	"github.com/grailbio/base/digest"
)

// Digester is the digester used to name objects.
var Digester = digest.Digester(crypto.SHA256)

// NewObjectID returns a fresh object ID. Object IDs are random
// digests: objects are named by submission, not by content.
func NewObjectID() digest.Digest {
	return Digester.Rand(nil)
}

// ParseObjectID parses an object ID in its string form.
func ParseObjectID(s string) (digest.Digest, error) {
	return Digester.Parse(s)
}

