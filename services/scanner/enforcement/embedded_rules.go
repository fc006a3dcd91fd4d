// Copyright (C) 2025 CodeMatrix
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
This file bridges the build system and the runtime logic. The Go embed
package bakes security_rules.yaml directly into the compiled binary, so
the scan rules are immutable at runtime and travel with the executable.
*/

package enforcement

import (
	_ "embed"
)

// SecurityRules holds the raw byte content of the 'security_rules.yaml'
// file, populated at compile time by the embed directive.
//
//go:embed security_rules.yaml
var SecurityRules []byte
