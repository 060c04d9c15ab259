// Copyright 2017 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package all imports all standard configuration providers.
package all

import (
	_ "github.com/grailbio/remote/config/localconfig"
	_ "github.com/grailbio/remote/config/nodeconfig"
	_ "github.com/grailbio/remote/config/otelconfig"
	_ "github.com/grailbio/remote/config/promconfig"
)
