package codesign

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// DefaultSecurityTool is the keychain tool queried for signing identities.
const DefaultSecurityTool = "security"

// ErrNoIdentity is returned when the keychain listing has no usable identity.
var ErrNoIdentity = errors.New("no valid code signing identity found")

// findIdentityArgs lists valid identities usable for code signing.
var findIdentityArgs = []string{"find-identity", "-v", "-p", "codesigning"}

var (
	// "     2 valid identities found"
	summaryLine = regexp.MustCompile(`^\s*\d+\s+valid\s+identit(?:y|ies)\s+found\s*$`)
	// "  1) 0123ABCD... "Developer ID Application: Name (TEAMID)""
	firstEntryLine = regexp.MustCompile(`(?:^|\s)1\)\s+(\w+)\s+"`)
	entryLine      = regexp.MustCompile(`^\s*(\d+)\)\s+(\w+)\s+"([^"]*)"`)
)

// Identity is one entry of a find-identity listing.
type Identity struct {
	Index int    // position in the listing, starting at 1
	Hash  string // SHA-1 of the certificate, accepted by codesign --sign
	Name  string // certificate common name
}

// ParseIdentity extracts the hash of the first listed identity. The listing
// must carry the "N valid identities found" summary; only the "1)" entry is
// ever considered.
func ParseIdentity(listing string) (string, error) {
	lines := splitLines("\n" + strings.TrimSpace(listing))

	hasSummary := false
	for _, line := range lines {
		if summaryLine.MatchString(line) {
			hasSummary = true
			break
		}
	}
	if !hasSummary {
		return "", ErrNoIdentity
	}

	for _, line := range lines {
		m := firstEntryLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		fields := strings.Fields(m[1])
		if len(fields) == 0 {
			break
		}
		return strings.TrimSpace(fields[0]), nil
	}

	return "", ErrNoIdentity
}

// ParseIdentities returns every enumerated entry of a listing in order.
func ParseIdentities(listing string) []Identity {
	var identities []Identity
	for _, line := range splitLines(listing) {
		m := entryLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		index, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		identities = append(identities, Identity{
			Index: index,
			Hash:  m[2],
			Name:  m[3],
		})
	}
	return identities
}

func splitLines(s string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// IdentityResolver looks up signing identities in the user's keychain.
type IdentityResolver struct {
	Runner Runner
	Tool   string // defaults to DefaultSecurityTool
	Logger *log.Logger
}

// Resolve returns the hash of the first valid code signing identity, or
// ErrNoIdentity.
func (r *IdentityResolver) Resolve(ctx context.Context) (string, error) {
	listing, err := r.listing(ctx)
	if err != nil {
		return "", err
	}

	identity, err := ParseIdentity(listing)
	if err != nil {
		return "", err
	}
	r.logger().Info("resolved signing identity", "identity", identity)
	return identity, nil
}

// List returns every valid code signing identity in listing order.
func (r *IdentityResolver) List(ctx context.Context) ([]Identity, error) {
	listing, err := r.listing(ctx)
	if err != nil {
		return nil, err
	}
	return ParseIdentities(listing), nil
}

func (r *IdentityResolver) listing(ctx context.Context) (string, error) {
	tool := r.Tool
	if tool == "" {
		tool = DefaultSecurityTool
	}
	argv := append([]string{tool}, findIdentityArgs...)
	r.logger().Info("listing identities", "cmd", CommandLine(argv))

	out, err := r.Runner.Output(ctx, tool, findIdentityArgs...)
	if err != nil {
		// Only the listing matters; a non-zero exit is not a failure here.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to run %s: %w", tool, err)
		}
		r.logger().Debug("identity lookup exited non-zero", "code", exitErr.ExitCode())
	}
	return string(out), nil
}

func (r *IdentityResolver) logger() *log.Logger {
	if r.Logger == nil {
		return discardLogger
	}
	return r.Logger
}
