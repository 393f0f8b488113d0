// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package decompiler orchestrates the VB5/6 P-Code decompilation pipeline:
// it opens a PE image, walks its VB metadata, disassembles and lifts every
// method's P-Code, and generates VB6 source for the result.
package decompiler

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"golang.org/x/sync/errgroup"

	pe "github.com/vbdecomp/vbdecompiler"
	"github.com/vbdecomp/vbdecompiler/codegen"
	"github.com/vbdecomp/vbdecompiler/errs"
	"github.com/vbdecomp/vbdecompiler/internal/vblog"
	"github.com/vbdecomp/vbdecompiler/ir"
	"github.com/vbdecomp/vbdecompiler/lifter"
	"github.com/vbdecomp/vbdecompiler/pcode"
	"github.com/vbdecomp/vbdecompiler/vb"
)

// Options configures a Decompiler.
type Options struct {
	// Logger overrides the default stdout logger.
	Logger log.Logger

	// SkipPacked reports a detected packer as KindUnsupported instead of
	// aborting with KindInvalidPE; use this when the caller wants to keep
	// batch-processing a corpus rather than stop at the first packed file.
	SkipPacked bool

	// Concurrency bounds how many methods are disassembled/lifted/generated
	// concurrently. Zero means runtime.NumCPU().
	Concurrency int
}

// Decompiler is the main orchestrator: PE -> VB -> P-Code -> IR -> VB6
// source. A Decompiler holds no per-run state and is safe to reuse or
// share across goroutines.
type Decompiler struct {
	opts   *Options
	logger *log.Helper
}

// New returns a ready-to-use Decompiler.
func New(opts *Options) *Decompiler {
	if opts == nil {
		opts = &Options{}
	}
	return &Decompiler{opts: opts, logger: vblog.New(opts.Logger)}
}

// DecompileFile reads path and decompiles it.
func (d *Decompiler) DecompileFile(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IOError(err)
	}
	return d.DecompileBytes(data)
}

// DecompileBytes runs the full pipeline over an in-memory PE image:
// packer triage, PE parse, VB walk (all sequential), then an
// embarrassingly-parallel pass disassembling, lifting, and generating
// every method, collected back in (object_index, method_index) order.
func (d *Decompiler) DecompileBytes(data []byte) (*Result, error) {
	d.logger.Infof("decompiling %d bytes", len(data))

	if det, _ := pe.DetectPacker(data); det != nil {
		if d.opts.SkipPacked {
			return nil, errs.Unsupported(fmt.Sprintf("packed with %s, decompilation skipped", det.Packer.Name()))
		}
		return nil, errs.InvalidPE(fmt.Sprintf("file appears packed with %s: %s", det.Packer.Name(), det.Packer.UnpackInstructions()))
	}

	f, err := pe.NewBytes(data, &pe.Options{Logger: d.opts.Logger})
	if err != nil {
		return nil, errs.IOError(err)
	}
	defer f.Close()

	if err := f.Parse(); err != nil {
		return nil, errs.InvalidPE(err.Error())
	}

	vf, err := vb.FromPE(f, d.opts.Logger)
	if err != nil {
		return nil, err
	}

	d.logger.Infof("found VB project %q", vf.ProjectName())

	signed, signer := readSigner(f)

	jobs := collectJobs(vf)
	codeParts := d.runJobs(jobs)

	var vb6Code strings.Builder
	methodCount := 0
	for _, code := range codeParts {
		if code == "" {
			continue
		}
		vb6Code.WriteString(code)
		vb6Code.WriteString("\n\n")
		methodCount++
	}

	if methodCount == 0 {
		return nil, errs.Decompilation("No P-Code methods found (executable may be native-compiled)")
	}

	return &Result{
		ProjectName: projectNameOrDefault(vf),
		VB6Code:     vb6Code.String(),
		IsPCode:     vf.IsPCode(),
		ObjectCount: len(vf.Objects),
		MethodCount: methodCount,
		Signed:      signed,
		Signer:      signer,
	}, nil
}

// readSigner extracts the Authenticode signer from the certificate data
// directory, if one is present. A missing or malformed directory is not an
// error for the decompiler: provenance is informational, and most VB6
// samples in the wild are unsigned.
func readSigner(f *pe.File) (bool, pe.CertInfo) {
	dir := f.NtHeader.OptionalHeader.DataDirectory[pe.ImageDirectoryEntryCertificate]
	if dir.Size == 0 {
		return false, pe.CertInfo{}
	}
	cert, err := f.ParseSecurityDirectory(dir.VirtualAddress)
	if err != nil {
		return false, pe.CertInfo{}
	}
	return true, cert.Info
}

// GenerateCode renders an already-lifted function; exposed for tests and
// callers that build IR directly rather than going through a PE image.
func (d *Decompiler) GenerateCode(function *ir.Function) string {
	return codegen.New().GenerateFunction(function)
}

// methodJob is one unit of parallel work: a single method's raw P-Code
// plus the naming context needed to render it and report failures.
type methodJob struct {
	objectIndex int
	methodIndex int
	objectName  string
	methodName  string
	pcode       []byte
}

func collectJobs(vf *vb.File) []methodJob {
	var jobs []methodJob
	for oi, obj := range vf.Objects {
		for mi, name := range obj.MethodNames {
			data := vf.PCodeForMethod(oi, mi)
			if len(data) == 0 {
				continue
			}
			jobs = append(jobs, methodJob{
				objectIndex: oi,
				methodIndex: mi,
				objectName:  obj.Name,
				methodName:  name,
				pcode:       data,
			})
		}
	}
	return jobs
}

// runJobs decompiles every job concurrently, bounded by Concurrency, and
// returns generated code in the same order as jobs. A failing job logs a
// warning and leaves its slot empty rather than aborting the others.
func (d *Decompiler) runJobs(jobs []methodJob) []string {
	results := make([]string, len(jobs))

	limit := d.opts.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	var g errgroup.Group
	g.SetLimit(limit)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			code, err := d.decompileMethod(job)
			if err != nil {
				d.logger.Warnf("skipping %s.%s: %v", job.objectName, job.methodName, err)
				return nil
			}
			results[i] = code
			return nil
		})
	}
	_ = g.Wait() // jobs never return a non-nil error; failures are logged and swallowed above

	return results
}

func (d *Decompiler) decompileMethod(job methodJob) (string, error) {
	disasm := pcode.NewDisassembler(job.pcode)
	instructions, err := disasm.Disassemble(0)
	if err != nil {
		return "", errs.PCodeDisassembly(err.Error())
	}
	if len(instructions) == 0 {
		return "", errs.PCodeDisassembly("no instructions decoded")
	}

	function, err := lifter.New().Lift(instructions, fmt.Sprintf("%s_%s", job.objectName, job.methodName))
	if err != nil {
		return "", errs.IRLift(err.Error())
	}

	return codegen.New().GenerateFunction(function), nil
}

func projectNameOrDefault(vf *vb.File) string {
	if name := vf.ProjectName(); name != "" {
		return name
	}
	return "Unknown"
}
