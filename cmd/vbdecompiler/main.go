// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pe "github.com/vbdecomp/vbdecompiler"
	"github.com/vbdecomp/vbdecompiler/decompiler"
	"github.com/vbdecomp/vbdecompiler/errs"
	"github.com/vbdecomp/vbdecompiler/vb"
	"github.com/vbdecomp/vbdecompiler/x86util"
)

var version = "0.1.0"

var (
	outPath     string
	concurrency int
	skipPacked  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vbdecompiler",
		Short: "A VB5/6 P-Code decompiler",
		Long:  "Recovers approximate VB6 source from P-Code compiled Visual Basic 5/6 executables",
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("vbdecompiler version", version)
		},
	}

	decompileCmd := &cobra.Command{
		Use:   "decompile <path>",
		Short: "Decompile a VB5/6 P-Code executable into VB6 source",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecompile,
	}
	decompileCmd.Flags().StringVarP(&outPath, "out", "o", "", "write generated source here instead of stdout")
	decompileCmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "max methods decompiled in parallel (0 = runtime.NumCPU())")
	decompileCmd.Flags().BoolVar(&skipPacked, "skip-packed", false, "treat a detected packer as unsupported instead of aborting")

	detectPackerCmd := &cobra.Command{
		Use:   "detect-packer <path>",
		Short: "Check a binary for known packer signatures without decompiling it",
		Args:  cobra.ExactArgs(1),
		RunE:  runDetectPacker,
	}

	provenanceCmd := &cobra.Command{
		Use:   "provenance <path>",
		Short: "Report the Authenticode signer of a binary, if any",
		Args:  cobra.ExactArgs(1),
		RunE:  runProvenance,
	}

	rootCmd.AddCommand(versionCmd, decompileCmd, detectPackerCmd, provenanceCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runDecompile(cmd *cobra.Command, args []string) error {
	path := args[0]

	d := decompiler.New(&decompiler.Options{
		Concurrency: concurrency,
		SkipPacked:  skipPacked,
	})

	result, err := d.DecompileFile(path)
	if err != nil {
		var de *errs.Error
		if errors.As(err, &de) && de.Is(errs.KindDecompilation) {
			if note := describeNativeCode(path); note != "" {
				fmt.Println(note)
				return nil
			}
		}
		return err
	}

	fmt.Printf("' Project: %s (%d objects, %d methods)\n", result.ProjectName, result.ObjectCount, result.MethodCount)
	if result.Signed {
		fmt.Printf("' Signed by: %s (issuer: %s, serial: %s)\n", result.Signer.Subject, result.Signer.Issuer, result.Signer.SerialNumber)
	}
	fmt.Println()

	if outPath != "" {
		return os.WriteFile(outPath, []byte(result.VB6Code), 0o644)
	}
	fmt.Print(result.VB6Code)
	return nil
}

// describeNativeCode is the CLI's own fallback for the case the core
// pipeline refuses: a VB project compiled to native machine code rather
// than P-Code. It walks the same PE+VB metadata the decompiler does, then
// hands the entry point's bytes to x86util just to report how many
// instructions are there — this module never lifts native code.
func describeNativeCode(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	f, err := pe.NewBytes(data, &pe.Options{})
	if err != nil {
		return ""
	}
	defer f.Close()

	if err := f.Parse(); err != nil {
		return ""
	}

	vf, err := vb.FromPE(f, nil)
	if err != nil || !vf.IsNativeCode {
		return ""
	}

	entry := f.NtHeader.OptionalHeader.AddressOfEntryPoint
	code, err := f.ReadBytesAtRVA(entry, 256)
	if err != nil {
		return "native-compiled (entry point unreadable)"
	}

	instrs, _ := x86util.New32().Disassemble(code, entry)
	return fmt.Sprintf("native-compiled, %d x86 instructions at entry point", len(instrs))
}

// runProvenance reports the Authenticode signer independently of the
// decompile pipeline, so a caller can check a binary's signer even when it
// isn't a VB5/6 P-Code image at all.
func runProvenance(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	f, err := pe.NewBytes(data, &pe.Options{})
	if err != nil {
		return errs.IOError(err)
	}
	defer f.Close()

	if err := f.Parse(); err != nil {
		return errs.InvalidPE(err.Error())
	}

	dir := f.NtHeader.OptionalHeader.DataDirectory[pe.ImageDirectoryEntryCertificate]
	if dir.Size == 0 {
		fmt.Println("unsigned")
		return nil
	}

	cert, err := f.ParseSecurityDirectory(dir.VirtualAddress)
	if err != nil {
		return fmt.Errorf("certificate directory present but unparsable: %w", err)
	}

	fmt.Printf("subject: %s\nissuer: %s\nserial: %s\n", cert.Info.Subject, cert.Info.Issuer, cert.Info.SerialNumber)
	return nil
}

func runDetectPacker(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	det, err := pe.DetectPacker(data)
	if err != nil {
		return err
	}
	if det == nil {
		fmt.Println("no packer detected")
		return nil
	}

	fmt.Printf("%s (confidence %.2f, via %s)\n", det.Packer.Name(), det.Confidence, det.Method)
	if instr := det.Packer.UnpackInstructions(); instr != "" {
		fmt.Println(instr)
	}
	return nil
}
