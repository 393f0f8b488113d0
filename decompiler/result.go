// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package decompiler

import pe "github.com/vbdecomp/vbdecompiler"

// Result is the outcome of a successful decompilation.
type Result struct {
	ProjectName string
	VB6Code     string
	IsPCode     bool
	ObjectCount int
	MethodCount int

	// Signed reports whether the image carries an Authenticode certificate
	// directory that ParseSecurityDirectory could parse; a present but
	// malformed directory leaves it false. Signer is only populated when
	// Signed is true.
	Signed bool
	Signer pe.CertInfo
}
