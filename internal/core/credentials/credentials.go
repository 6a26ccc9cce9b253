// Package credentials finds the OAuth token the Claude Code CLI stores after
// login.
package credentials

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/neilberkman/ccdash/pkg/ccsessions"
)

// EnvToken overrides every other source when set
const EnvToken = "CLAUDE_CODE_OAUTH_TOKEN"

const keychainService = "Claude Code-credentials"

// secret-tool services tried in order
var secretToolServices = []string{"claude.ai", keychainService}

// ErrNoToken is returned when no source yields a token
var ErrNoToken = errors.New("could not detect OAuth token; check that the Claude Code CLI is logged in")

// RunFunc runs an external command and returns its stdout
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// RunInputFunc runs an external command with stdin
type RunInputFunc func(ctx context.Context, stdin []byte, name string, args ...string) error

// Detector looks for a token in the environment, the credentials file, the
// OS keyring and, on Windows, the default WSL distro.
type Detector struct {
	Getenv   func(string) string
	HomeDir  func() (string, error)
	Run      RunFunc
	RunInput RunInputFunc
	GOOS     string
	Logger   *slog.Logger
}

// NewDetector returns a Detector wired to the real environment
func NewDetector() *Detector {
	return &Detector{
		Getenv:   os.Getenv,
		HomeDir:  os.UserHomeDir,
		Run:      runCommand,
		RunInput: runWithInput,
		GOOS:     runtime.GOOS,
		Logger:   slog.Default(),
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func runWithInput(ctx context.Context, stdin []byte, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	return cmd.Run()
}

type credentialsFile struct {
	ClaudeAiOauth *struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken,omitempty"`
		ExpiresAt    int64  `json:"expiresAt,omitempty"`
	} `json:"claudeAiOauth"`
}

// FullCredentials is a stored login including its refresh token.
// SourcePath is the file refreshed tokens are written back to.
type FullCredentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
	SourcePath   string
}

// ParseCredentials extracts the access token from credentials JSON
func ParseCredentials(raw []byte) (string, bool) {
	creds, ok := parseFullCredentials(raw)
	if !ok {
		return "", false
	}
	return creds.AccessToken, true
}

func parseFullCredentials(raw []byte) (*FullCredentials, bool) {
	var creds credentialsFile
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, false
	}
	if creds.ClaudeAiOauth == nil || creds.ClaudeAiOauth.AccessToken == "" {
		return nil, false
	}
	return &FullCredentials{
		AccessToken:  creds.ClaudeAiOauth.AccessToken,
		RefreshToken: creds.ClaudeAiOauth.RefreshToken,
		ExpiresAt:    creds.ClaudeAiOauth.ExpiresAt,
	}, true
}

// CredentialsPath is the native credentials file location
func (d *Detector) CredentialsPath() (string, error) {
	home, err := d.HomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".claude", ".credentials.json"), nil
}

// DetectOAuthToken returns the first token found. wslDistro selects the
// distro searched on Windows; empty means the default distro.
func (d *Detector) DetectOAuthToken(ctx context.Context, wslDistro string) (string, error) {
	if tok := strings.TrimSpace(d.Getenv(EnvToken)); tok != "" {
		return tok, nil
	}

	if tok, ok := d.ReadCredentialsFile(); ok {
		return tok, nil
	}

	switch d.GOOS {
	case "darwin":
		if tok, ok := d.readKeychain(ctx); ok {
			return tok, nil
		}
	case "linux":
		if tok, ok := d.readSecretTool(ctx); ok {
			return tok, nil
		}
	case "windows":
		if tok, ok := d.readWSL(ctx, wslDistro); ok {
			return tok, nil
		}
	}

	return "", ErrNoToken
}

// ReadFullCredentials finds the stored login with its refresh token. The
// keyring sources write back to the native credentials file.
func (d *Detector) ReadFullCredentials(ctx context.Context, wslDistro string) (*FullCredentials, error) {
	native, err := d.CredentialsPath()
	if err != nil {
		return nil, err
	}
	if data, err := os.ReadFile(native); err == nil {
		if creds, ok := parseFullCredentials(data); ok {
			creds.SourcePath = native
			return creds, nil
		}
	}

	var raws []string
	switch d.GOOS {
	case "darwin":
		if raw, ok := d.keychainRaw(ctx); ok {
			raws = append(raws, raw)
		}
	case "linux":
		for _, service := range secretToolServices {
			if raw, ok := d.output(ctx, "secret-tool", "lookup", "service", service); ok {
				raws = append(raws, raw)
			}
		}
	case "windows":
		if path, ok := d.WSLCredentialsPath(ctx, wslDistro); ok {
			if data, err := os.ReadFile(path); err == nil {
				if creds, ok := parseFullCredentials(data); ok {
					creds.SourcePath = path
					return creds, nil
				}
			}
		}
	}
	for _, raw := range raws {
		if creds, ok := parseFullCredentials([]byte(raw)); ok {
			creds.SourcePath = native
			return creds, nil
		}
	}

	return nil, ErrNoToken
}

// UpdateKeyring stores credentials JSON in the OS keyring the CLI reads
// from. Platforms without one are a no-op.
func (d *Detector) UpdateKeyring(ctx context.Context, content []byte) error {
	switch d.GOOS {
	case "darwin":
		_, err := d.Run(ctx, "security", "add-generic-password", "-U",
			"-s", keychainService, "-a", "Claude Code", "-w", string(content))
		return err
	case "linux":
		if d.RunInput == nil {
			return nil
		}
		return d.RunInput(ctx, content, "secret-tool", "store", "--label=Claude Code", "service", keychainService)
	}
	return nil
}

// ReadCredentialsFile reads ~/.claude/.credentials.json
func (d *Detector) ReadCredentialsFile() (string, bool) {
	path, err := d.CredentialsPath()
	if err != nil {
		return "", false
	}
	return readTokenFile(path)
}

func readTokenFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return ParseCredentials(data)
}

func (d *Detector) output(ctx context.Context, name string, args ...string) (string, bool) {
	out, err := d.Run(ctx, name, args...)
	if err != nil {
		d.logger().Debug("credential source unavailable", "command", name, "error", err)
		return "", false
	}
	raw := strings.TrimSpace(string(out))
	return raw, raw != ""
}

func (d *Detector) readKeychain(ctx context.Context) (string, bool) {
	raw, ok := d.keychainRaw(ctx)
	if !ok {
		return "", false
	}
	return ParseCredentials([]byte(raw))
}

func (d *Detector) keychainRaw(ctx context.Context) (string, bool) {
	raw, ok := d.output(ctx, "security", "find-generic-password", "-s", keychainService, "-w")
	if !ok {
		return "", false
	}
	// binary-safe keychain values come back hex encoded
	if !strings.HasPrefix(raw, "{") {
		if decoded, ok := decodeHexCredentials(raw); ok {
			raw = decoded
		}
	}
	return raw, true
}

func decodeHexCredentials(s string) (string, bool) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", false
	}
	text := string(b)
	if !strings.Contains(text, "claudeAiOauth") {
		return "", false
	}
	return text, true
}

func (d *Detector) readSecretTool(ctx context.Context) (string, bool) {
	for _, service := range secretToolServices {
		raw, ok := d.output(ctx, "secret-tool", "lookup", "service", service)
		if !ok {
			continue
		}
		if tok, ok := ParseCredentials([]byte(raw)); ok {
			return tok, true
		}
		if strings.HasPrefix(raw, "sk-ant-") {
			return raw, true
		}
	}
	return "", false
}

func (d *Detector) readWSL(ctx context.Context, distro string) (string, bool) {
	path, ok := d.WSLCredentialsPath(ctx, distro)
	if !ok {
		return "", false
	}
	return readTokenFile(path)
}

// WSLCredentialsPath locates the credentials file inside a WSL distro as a
// Windows share path
func (d *Detector) WSLCredentialsPath(ctx context.Context, distro string) (string, bool) {
	if distro == "" {
		var ok bool
		if distro, ok = d.DefaultDistro(ctx); !ok {
			return "", false
		}
	}
	out, err := d.Run(ctx, "wsl.exe", "-d", distro, "--", "bash", "-c", "echo $HOME")
	if err != nil {
		return "", false
	}
	home := strings.TrimSpace(decodeWSLOutput(out))
	if home == "" {
		return "", false
	}
	return ccsessions.WSLPath(distro, home+"/.claude/.credentials.json"), true
}

// DefaultDistro returns the first distro wsl.exe lists
func (d *Detector) DefaultDistro(ctx context.Context) (string, bool) {
	out, err := d.Run(ctx, "wsl.exe", "--list", "--quiet")
	if err != nil {
		return "", false
	}
	for _, line := range strings.Split(decodeWSLOutput(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line, true
		}
	}
	return "", false
}

// decodeWSLOutput handles wsl.exe writing UTF-16LE on Windows
func decodeWSLOutput(b []byte) string {
	body := bytes.TrimPrefix(b, []byte{0xff, 0xfe})
	if len(body) >= 2 && len(body)%2 == 0 && utf16Looking(body) {
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		if s, err := dec.Bytes(body); err == nil {
			return string(s)
		}
	}
	return strings.ReplaceAll(string(b), "\x00", "")
}

// utf16Looking reports whether b looks like UTF-16LE ASCII text, where every
// other byte is zero
func utf16Looking(b []byte) bool {
	for i := 1; i < len(b); i += 2 {
		if b[i] != 0 {
			return false
		}
	}
	return true
}

func (d *Detector) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
