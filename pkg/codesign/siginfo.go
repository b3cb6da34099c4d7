package codesign

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/blacktop/go-macho"
	"go.mozilla.org/pkcs7"
)

// Code signature constants from Apple's cs_blobs.h
const (
	CSMAGIC_CODEDIRECTORY         = 0xfade0c02
	CSMAGIC_EMBEDDED_SIGNATURE    = 0xfade0cc0
	CSMAGIC_EMBEDDED_ENTITLEMENTS = 0xfade7171
	CSMAGIC_BLOBWRAPPER           = 0xfade0b01

	CSSLOT_CODEDIRECTORY             = 0
	CSSLOT_REQUIREMENTS              = 2
	CSSLOT_ENTITLEMENTS              = 5
	CSSLOT_DER_ENTITLEMENTS          = 7
	CSSLOT_ALTERNATE_CODEDIRECTORIES = 0x1000
	CSSLOT_SIGNATURESLOT             = 0x10000

	CS_HASHTYPE_SHA1   = 1
	CS_HASHTYPE_SHA256 = 2

	CS_ADHOC   = 0x00000002
	CS_RUNTIME = 0x00010000
)

// ErrNotSigned is returned for Mach-O files without LC_CODE_SIGNATURE.
var ErrNotSigned = errors.New("no code signature found")

// SignatureInfo holds the parts of an embedded code signature that tell
// whether a signing run did what was asked.
type SignatureInfo struct {
	BinaryPath      string
	Arch            string
	Identifier      string
	TeamID          string
	Flags           uint32
	HashTypes       []uint8
	Blobs           []BlobIndexEntry
	Entitlements    map[string]interface{}
	EntitlementsDER bool
	SignerCN        string
	SignerTeamID    string
}

// BlobIndexEntry represents a single blob in the SuperBlob index
type BlobIndexEntry struct {
	Type   uint32
	Offset uint32
	Size   uint32
	Magic  uint32
}

// HardenedRuntime reports whether the binary was signed with -o runtime.
func (i *SignatureInfo) HardenedRuntime() bool {
	return i.Flags&CS_RUNTIME != 0
}

// AdHoc reports whether the signature carries no signing identity.
func (i *SignatureInfo) AdHoc() bool {
	return i.Flags&CS_ADHOC != 0
}

// ParseSignature reads the embedded signature of a thin or universal
// Mach-O binary, one entry per architecture.
func ParseSignature(binaryPath string) ([]*SignatureInfo, error) {
	data, err := os.ReadFile(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read binary: %w", err)
	}

	if m, err := macho.NewFile(bytes.NewReader(data)); err == nil {
		defer m.Close()
		info, err := parseThinSignature(data, m)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", binaryPath, err)
		}
		info.BinaryPath = binaryPath
		return []*SignatureInfo{info}, nil
	}

	fat, err := macho.NewFatFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: not a Mach-O binary: %w", binaryPath, err)
	}
	defer fat.Close()

	var infos []*SignatureInfo
	for i, arch := range fat.Arches {
		end := uint64(arch.Offset) + uint64(arch.Size)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("%s: arch %d extends beyond file", binaryPath, i)
		}
		archData := data[arch.Offset:end]

		m, err := macho.NewFile(bytes.NewReader(archData))
		if err != nil {
			return nil, fmt.Errorf("%s: failed to parse arch %d: %w", binaryPath, i, err)
		}
		info, err := parseThinSignature(archData, m)
		m.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: arch %d: %w", binaryPath, i, err)
		}
		info.BinaryPath = binaryPath
		infos = append(infos, info)
	}

	return infos, nil
}

func parseThinSignature(data []byte, m *macho.File) (*SignatureInfo, error) {
	for _, load := range m.Loads {
		cs, ok := load.(*macho.CodeSignature)
		if !ok {
			continue
		}
		end := uint64(cs.Offset) + uint64(cs.Size)
		if end > uint64(len(data)) {
			return nil, fmt.Errorf("code signature extends beyond file")
		}
		info, err := ParseSignatureBlob(data[cs.Offset:end])
		if err != nil {
			return nil, err
		}
		info.Arch = m.CPU.String()
		return info, nil
	}
	return nil, ErrNotSigned
}

// ParseSignatureBlob decodes an embedded signature SuperBlob.
func ParseSignatureBlob(sigData []byte) (*SignatureInfo, error) {
	if len(sigData) < 12 {
		return nil, fmt.Errorf("signature data too short")
	}

	magic := binary.BigEndian.Uint32(sigData[0:4])
	if magic != CSMAGIC_EMBEDDED_SIGNATURE {
		return nil, fmt.Errorf("invalid SuperBlob magic: 0x%x", magic)
	}
	count := binary.BigEndian.Uint32(sigData[8:12])

	indexSize := 12 + uint64(count)*8
	if uint64(len(sigData)) < indexSize {
		return nil, fmt.Errorf("signature data too short for blob index")
	}

	info := &SignatureInfo{}
	var cmsData []byte

	for i := uint32(0); i < count; i++ {
		entryOffset := 12 + i*8
		blobType := binary.BigEndian.Uint32(sigData[entryOffset:])
		blobOffset := binary.BigEndian.Uint32(sigData[entryOffset+4:])

		var blobMagic, blobSize uint32
		if uint64(blobOffset)+8 <= uint64(len(sigData)) {
			blobMagic = binary.BigEndian.Uint32(sigData[blobOffset:])
			blobSize = binary.BigEndian.Uint32(sigData[blobOffset+4:])
		}
		info.Blobs = append(info.Blobs, BlobIndexEntry{
			Type:   blobType,
			Offset: blobOffset,
			Size:   blobSize,
			Magic:  blobMagic,
		})

		if blobSize < 8 || uint64(blobOffset)+uint64(blobSize) > uint64(len(sigData)) {
			continue
		}
		blob := sigData[blobOffset : blobOffset+blobSize]

		switch {
		case blobType == CSSLOT_CODEDIRECTORY || (blobType >= CSSLOT_ALTERNATE_CODEDIRECTORIES && blobType < CSSLOT_ALTERNATE_CODEDIRECTORIES+5):
			cd, err := parseCodeDirectory(blob)
			if err != nil {
				return nil, fmt.Errorf("slot 0x%x: %w", blobType, err)
			}
			info.HashTypes = append(info.HashTypes, cd.hashType)
			if blobType == CSSLOT_CODEDIRECTORY {
				info.Identifier = cd.identifier
				info.TeamID = cd.teamID
				info.Flags = cd.flags
			}
		case blobType == CSSLOT_ENTITLEMENTS:
			if ents, err := ParseEntitlementsXML(blob[8:]); err == nil {
				info.Entitlements = ents
			}
		case blobType == CSSLOT_DER_ENTITLEMENTS:
			info.EntitlementsDER = true
		case blobType == CSSLOT_SIGNATURESLOT:
			cmsData = blob[8:]
		}
	}

	if len(cmsData) > 0 {
		info.SignerCN, info.SignerTeamID = parseCMSSigner(cmsData)
	}

	return info, nil
}

type codeDirectory struct {
	flags      uint32
	hashType   uint8
	identifier string
	teamID     string
}

// parseCodeDirectory parses the CodeDirectory fields the report needs
func parseCodeDirectory(data []byte) (*codeDirectory, error) {
	if len(data) < 44 {
		return nil, fmt.Errorf("CodeDirectory too short")
	}
	if magic := binary.BigEndian.Uint32(data[0:4]); magic != CSMAGIC_CODEDIRECTORY {
		return nil, fmt.Errorf("invalid CodeDirectory magic: 0x%x", magic)
	}

	version := binary.BigEndian.Uint32(data[8:12])
	cd := &codeDirectory{
		flags:    binary.BigEndian.Uint32(data[12:16]),
		hashType: data[37],
	}
	cd.identifier = cString(data, binary.BigEndian.Uint32(data[20:24]))

	// Team ID offset exists from version 0x20200 on
	if version >= 0x20200 && len(data) >= 52 {
		if teamOffset := binary.BigEndian.Uint32(data[48:52]); teamOffset > 0 {
			cd.teamID = cString(data, teamOffset)
		}
	}

	return cd, nil
}

func cString(data []byte, offset uint32) string {
	if uint64(offset) >= uint64(len(data)) {
		return ""
	}
	rest := data[offset:]
	if end := bytes.IndexByte(rest, 0); end >= 0 {
		rest = rest[:end]
	}
	return string(rest)
}

// parseCMSSigner returns the common name and team ID of the certificate that
// produced the CMS signature. Ad-hoc signatures carry an empty CMS blob.
func parseCMSSigner(cmsData []byte) (cn, teamID string) {
	p7, err := pkcs7.Parse(cmsData)
	if err != nil || len(p7.Signers) == 0 {
		return "", ""
	}

	signer := p7.Signers[0]
	for _, cert := range p7.Certificates {
		if cert.SerialNumber.Cmp(signer.IssuerAndSerialNumber.SerialNumber) == 0 {
			return cert.Subject.CommonName, extractTeamID(cert)
		}
	}
	return "", ""
}

// PrintSignatureInfo prints signature information to a writer
func PrintSignatureInfo(info *SignatureInfo, w io.Writer) {
	fmt.Fprintf(w, "\n=== %s", info.BinaryPath)
	if info.Arch != "" {
		fmt.Fprintf(w, " (%s)", info.Arch)
	}
	fmt.Fprintln(w, " ===")

	if info.Identifier != "" {
		fmt.Fprintf(w, "Identifier:       %s\n", info.Identifier)
	}
	if info.TeamID != "" {
		fmt.Fprintf(w, "Team ID:          %s\n", info.TeamID)
	}
	fmt.Fprintf(w, "Flags:            0x%x\n", info.Flags)
	fmt.Fprintf(w, "Hardened runtime: %v\n", info.HardenedRuntime())
	fmt.Fprintf(w, "Ad-hoc:           %v\n", info.AdHoc())

	for _, ht := range info.HashTypes {
		fmt.Fprintf(w, "CodeDirectory:    %s\n", hashTypeName(ht))
	}

	if info.SignerCN != "" {
		fmt.Fprintf(w, "Signer:           %s\n", info.SignerCN)
	}
	if info.SignerTeamID != "" {
		fmt.Fprintf(w, "Signer team ID:   %s\n", info.SignerTeamID)
	}

	if len(info.Entitlements) > 0 {
		fmt.Fprintln(w, "Entitlements:")
		for _, key := range EntitlementKeys(info.Entitlements) {
			fmt.Fprintf(w, "  %s: %v\n", key, info.Entitlements[key])
		}
	}
	if info.EntitlementsDER {
		fmt.Fprintln(w, "DER entitlements: present")
	}

	fmt.Fprintf(w, "Blobs:            %d\n", len(info.Blobs))
	for i, blob := range info.Blobs {
		prefix := "├─"
		if i == len(info.Blobs)-1 {
			prefix = "└─"
		}
		fmt.Fprintf(w, "  %s %s: slot 0x%x, %d bytes\n", prefix, blobTypeName(blob.Type), blob.Type, blob.Size)
	}
}

func hashTypeName(hashType uint8) string {
	switch hashType {
	case CS_HASHTYPE_SHA1:
		return "SHA-1"
	case CS_HASHTYPE_SHA256:
		return "SHA-256"
	default:
		return fmt.Sprintf("hash type %d", hashType)
	}
}

func blobTypeName(blobType uint32) string {
	switch blobType {
	case CSSLOT_CODEDIRECTORY:
		return "CodeDirectory"
	case CSSLOT_REQUIREMENTS:
		return "Requirements"
	case CSSLOT_ENTITLEMENTS:
		return "Entitlements"
	case CSSLOT_DER_ENTITLEMENTS:
		return "Entitlements (DER)"
	case CSSLOT_SIGNATURESLOT:
		return "CMS Signature"
	default:
		if blobType >= CSSLOT_ALTERNATE_CODEDIRECTORIES && blobType < CSSLOT_ALTERNATE_CODEDIRECTORIES+5 {
			return "CodeDirectory (alt)"
		}
		return "Unknown"
	}
}
