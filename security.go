// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pe

import (
	"encoding/binary"
	"encoding/hex"
	"errors"

	"go.mozilla.org/pkcs7"
)

// ErrSecurityDataDirInvalid is reported when the WIN_CERTIFICATE header in
// the certificate directory can't be read.
var ErrSecurityDataDirInvalid = errors.New("invalid certificate header in security directory")

// WinCertificate is the WIN_CERTIFICATE header preceding a PKCS#7 blob in
// the certificate (security) data directory.
type WinCertificate struct {
	Length          uint32 `json:"length"`
	Revision        uint16 `json:"revision"`
	CertificateType uint16 `json:"certificate_type"`
}

// CertInfo summarizes the Authenticode signer of a signed executable. VB6
// installers and redistributables are commonly signed; this module parses
// the certificate as provenance only — it never validates the chain or the
// signature itself, since the decompiler's job is recovering source, not
// judging trust.
type CertInfo struct {
	Issuer       string `json:"issuer"`
	Subject      string `json:"subject"`
	SerialNumber string `json:"serial_number"`
}

// Certificate is the parsed contents of the certificate data directory.
type Certificate struct {
	Header WinCertificate `json:"header"`
	Info   CertInfo       `json:"info"`
}

// ParseSecurityDirectory parses the WIN_CERTIFICATE entry at the given file
// offset (the certificate table is one of the few directories addressed by
// raw file offset rather than RVA) and extracts the leading signer's
// identity out of the enclosed PKCS#7 SignedData blob.
func (pe *File) ParseSecurityDirectory(fileOffset uint32) (Certificate, error) {
	certHeader := WinCertificate{}
	certSize := uint32(binary.Size(certHeader))

	if err := pe.structUnpack(&certHeader, fileOffset, certSize); err != nil {
		return Certificate{}, ErrOutsideBoundary
	}

	certEnd := fileOffset + certHeader.Length
	if certHeader.Length == 0 || certEnd < fileOffset || certEnd > pe.size || certHeader.Length < certSize {
		return Certificate{}, ErrSecurityDataDirInvalid
	}

	certContent := pe.data[fileOffset+certSize : fileOffset+certHeader.Length]
	pkcs, err := pkcs7.Parse(certContent)
	if err != nil {
		return Certificate{Header: certHeader}, err
	}

	cert := Certificate{Header: certHeader}
	if len(pkcs.Signers) == 0 || len(pkcs.Certificates) == 0 {
		return cert, nil
	}

	serialNumber := pkcs.Signers[0].IssuerAndSerialNumber.SerialNumber
	for _, c := range pkcs.Certificates {
		if c.SerialNumber.Cmp(serialNumber) != 0 {
			continue
		}
		cert.Info.SerialNumber = hex.EncodeToString(c.SerialNumber.Bytes())
		cert.Info.Issuer = c.Issuer.CommonName
		cert.Info.Subject = c.Subject.CommonName
		break
	}

	return cert, nil
}
