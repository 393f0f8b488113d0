// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import "testing"

func TestParseImportDirectory(t *testing.T) {
	f := parsedMinimalPE(t, peOptions{withImports: true, importDLLName: "MSVBVM60.DLL"}, &Options{})
	defer f.Close()

	if len(f.Imports) != 1 {
		t.Fatalf("len(Imports) = %d, want 1", len(f.Imports))
	}
	if f.Imports[0].Name != "MSVBVM60.DLL" {
		t.Errorf("Imports[0].Name = %q, want %q", f.Imports[0].Name, "MSVBVM60.DLL")
	}
	if !f.HasImport {
		t.Error("HasImport = false, want true")
	}
}

func TestParseImportDirectoryNone(t *testing.T) {
	f := parsedMinimalPE(t, peOptions{}, &Options{})
	defer f.Close()

	if len(f.Imports) != 0 {
		t.Errorf("len(Imports) = %d, want 0", len(f.Imports))
	}
	if f.HasImport {
		t.Error("HasImport = true, want false")
	}
}

func TestImportedDLLs(t *testing.T) {
	f := parsedMinimalPE(t, peOptions{withImports: true, importDLLName: "KERNEL32.DLL"}, &Options{})
	defer f.Close()

	names := f.ImportedDLLs()
	if len(names) != 1 || names[0] != "KERNEL32.DLL" {
		t.Errorf("ImportedDLLs() = %v, want [KERNEL32.DLL]", names)
	}
}

func TestFastParseSkipsImports(t *testing.T) {
	f := parsedMinimalPE(t, peOptions{withImports: true}, &Options{Fast: true})
	defer f.Close()

	if len(f.Imports) != 0 {
		t.Errorf("len(Imports) = %d, want 0 under Fast parsing", len(f.Imports))
	}
}
