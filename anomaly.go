// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

// Anomalies are soft warnings recorded while walking a PE file's headers;
// unlike the Err* sentinels they don't abort parsing.
var (
	// AnoPEHeaderOverlapDOSHeader is reported when the PE headers overlap
	// the DOS header, as in a tiny PE where e_lfanew is 4.
	AnoPEHeaderOverlapDOSHeader = "PE header overlaps with DOS header"

	// AnoReservedDataDirectoryEntry is reported when the 16th (reserved)
	// data directory entry is non-zero.
	AnoReservedDataDirectoryEntry = "reserved data directory entry is non-zero"
)
