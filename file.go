// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/go-kratos/kratos/v2/log"

	"github.com/vbdecomp/vbdecompiler/internal/vblog"
)

// A File represents an open, partially-parsed PE32 image. It only carries
// the headers a VB5/6 P-Code decompiler needs: DOS/NT headers, sections,
// imported DLL names. The Authenticode certificate is not stored here;
// ParseSecurityDirectory reads it on request.
type File struct {
	DOSHeader ImageDOSHeader `json:"dos_header,omitempty"`
	NtHeader  ImageNtHeader  `json:"nt_header,omitempty"`
	Sections  []Section      `json:"sections,omitempty"`
	Imports   []Import       `json:"imports,omitempty"`
	Anomalies []string       `json:"anomalies,omitempty"`

	HasDOSHdr   bool
	HasNTHdr    bool
	HasSections bool
	HasImport   bool

	Header []byte

	data          mmap.MMap
	size          uint32
	OverlayOffset int64

	f      *os.File
	opts   *Options
	logger *log.Helper
}

// Options configures how a File is parsed.
type Options struct {
	// Fast parses only the DOS/NT headers and section table, skipping the
	// import directory; the resource entry is still zeroed. Used by the
	// packer detector's quick entropy-only pass.
	Fast bool

	// SectionEntropy computes Shannon entropy per section (§4.2's packer
	// signal). Off by default since it walks every section's raw bytes.
	SectionEntropy bool

	// Logger overrides the default stdout logger.
	Logger log.Logger
}

// New memory-maps the named file and wraps it in a File. The mapping is
// private/copy-on-write (mmap.COPY) rather than read-only: the resource
// data-directory workaround (resource.go) needs to zero bytes in the
// mapped buffer, and COPY lets it do that without ever touching the file
// on disk.
func New(name string, opts *Options) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	data, err := mmap.Map(f, mmap.COPY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	file := newFile(opts)
	file.data = data
	file.size = uint32(len(file.data))
	file.f = f
	return file, nil
}

// NewBytes wraps an in-memory buffer in a File, without touching the
// filesystem. Used by tests and by callers that already hold the bytes
// (e.g. after fetching a sample over the network).
func NewBytes(data []byte, opts *Options) (*File, error) {
	file := newFile(opts)
	file.data = data
	file.size = uint32(len(file.data))
	return file, nil
}

func newFile(opts *Options) *File {
	file := &File{}
	if opts != nil {
		file.opts = opts
	} else {
		file.opts = &Options{}
	}
	file.logger = vblog.New(file.opts.Logger)
	return file
}

// Close releases the file's memory mapping and underlying descriptor.
func (pe *File) Close() error {
	if pe.data != nil {
		_ = pe.data.Unmap()
	}
	if pe.f != nil {
		return pe.f.Close()
	}
	return nil
}

// Parse runs the sequential PE-loading pipeline: DOS header, NT header,
// section table, the resource-directory zeroing workaround, and (unless
// Fast is set) the import directory.
func (pe *File) Parse() error {
	if len(pe.data) < TinyPESize {
		return ErrInvalidPESize
	}

	if err := pe.ParseDOSHeader(); err != nil {
		return err
	}

	if err := pe.ParseNTHeader(); err != nil {
		return err
	}

	if err := pe.ParseSectionHeader(); err != nil {
		return err
	}

	// Neutralize the resource directory before anything downstream ever
	// looks at it; see resource.go.
	pe.zeroResourceDataDirectory()

	if pe.opts.Fast {
		return nil
	}

	importDir := pe.NtHeader.OptionalHeader.DataDirectory[ImageDirectoryEntryImport]
	if importDir.VirtualAddress != 0 {
		if err := pe.parseImportDirectory(importDir.VirtualAddress); err != nil {
			pe.logger.Warnf("failed to parse import directory: %v", err)
		}
	}

	return nil
}

// IsDLL reports whether the file's characteristics flag it as a DLL.
func (pe *File) IsDLL() bool {
	return pe.NtHeader.FileHeader.Characteristics&ImageFileDLL != 0
}
