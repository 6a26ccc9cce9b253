// Package terminal opens a new terminal window running a command.
package terminal

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Spawner handles spawning new terminal windows with commands
type Spawner struct {
	// Optional override from config
	CustomCommand string

	// Run the command inside a WSL distro (Windows only)
	UseWSL    bool
	WSLDistro string

	goos     string
	getenv   func(string) string
	lookPath func(string) (string, error)
	start    func(name string, args ...string) error
	tempDir  func() string
}

// SpawnConfig contains the command to run in a new terminal
type SpawnConfig struct {
	WorkingDir string
	Command    string // Full shell command to execute
}

// ErrNoTerminal is returned when no supported terminal emulator is found
var ErrNoTerminal = errors.New("no terminal emulator found; set terminal_command in config.toml")

// NewSpawner returns a Spawner for the running OS
func NewSpawner(custom string, useWSL bool, distro string) *Spawner {
	return &Spawner{
		CustomCommand: custom,
		UseWSL:        useWSL,
		WSLDistro:     distro,
		goos:          runtime.GOOS,
		getenv:        os.Getenv,
		lookPath:      exec.LookPath,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
		tempDir: os.TempDir,
	}
}

func (s *Spawner) has(tool string) bool {
	_, err := s.lookPath(tool)
	return err == nil
}

// Spawn opens a new terminal window and runs the command
func (s *Spawner) Spawn(cfg SpawnConfig) error {
	// Use custom command if configured
	if s.CustomCommand != "" {
		return s.spawnCustom(cfg)
	}

	if s.goos == "windows" {
		return s.spawnWindows(cfg)
	}

	// Auto-detect terminal
	switch s.getenv("TERM_PROGRAM") {
	case "ghostty":
		return s.spawnGhostty(cfg)
	case "iTerm.app":
		return s.spawnITerm(cfg)
	case "Apple_Terminal":
		return s.spawnTerminalApp(cfg)
	case "WezTerm":
		return s.spawnWezTerm(cfg)
	case "kitty":
		return s.spawnKitty(cfg)
	}

	// Try to detect by checking for CLI tools
	switch {
	case s.has("ghostty"):
		return s.spawnGhostty(cfg)
	case s.has("wezterm"):
		return s.spawnWezTerm(cfg)
	case s.has("kitty"):
		return s.spawnKitty(cfg)
	}

	if s.goos == "darwin" {
		// Last resort: macOS Terminal.app via AppleScript
		return s.spawnTerminalApp(cfg)
	}
	return s.spawnLinux(cfg)
}

func (s *Spawner) spawnGhostty(cfg SpawnConfig) error {
	// Ghostty: +new-window opens in existing instance
	return s.start("ghostty",
		"+new-window",
		"--working-directory="+cfg.WorkingDir,
		"-e", "bash", "-l", "-c", cfg.Command,
	)
}

func (s *Spawner) spawnITerm(cfg SpawnConfig) error {
	script := fmt.Sprintf(`
tell application "iTerm"
	create window with default profile
	tell current session of current window
		write text "cd %s && %s"
	end tell
end tell
`, shellEscape(cfg.WorkingDir), shellEscape(cfg.Command))

	return s.start("osascript", "-e", script)
}

func (s *Spawner) spawnTerminalApp(cfg SpawnConfig) error {
	script := fmt.Sprintf(`
tell application "Terminal"
	do script "cd %s && %s"
	activate
end tell
`, shellEscape(cfg.WorkingDir), shellEscape(cfg.Command))

	return s.start("osascript", "-e", script)
}

func (s *Spawner) spawnWezTerm(cfg SpawnConfig) error {
	// WezTerm: wezterm cli spawn (if remote control enabled)
	return s.start("wezterm", "cli", "spawn",
		"--cwd", cfg.WorkingDir,
		"--", "bash", "-l", "-c", cfg.Command,
	)
}

func (s *Spawner) spawnKitty(cfg SpawnConfig) error {
	// Kitty: kitty @ launch (if remote control enabled)
	return s.start("kitty", "@", "launch",
		"--type=os-window",
		"--cwd="+cfg.WorkingDir,
		"bash", "-l", "-c", cfg.Command,
	)
}

// linuxTerminals are tried in order, each followed by its exec arguments
var linuxTerminals = [][]string{
	{"x-terminal-emulator", "-e", "bash", "-c"},
	{"gnome-terminal", "--", "bash", "-c"},
	{"konsole", "-e", "bash", "-c"},
	{"xfce4-terminal", "-e", "bash", "-c"},
	{"xterm", "-e", "bash", "-c"},
}

func (s *Spawner) spawnLinux(cfg SpawnConfig) error {
	line := "cd " + shellEscape(cfg.WorkingDir) + " && " + cfg.Command
	for _, term := range linuxTerminals {
		if s.has(term[0]) {
			args := append(append([]string{}, term[1:]...), line)
			return s.start(term[0], args...)
		}
	}
	return ErrNoTerminal
}

func (s *Spawner) spawnWindows(cfg SpawnConfig) error {
	if !s.UseWSL {
		line := fmt.Sprintf(`cd /d "%s" && %s`, cfg.WorkingDir, cfg.Command)
		return s.start("cmd", "/c", "start", "cmd", "/k", line)
	}

	distro := s.WSLDistro
	if distro == "" {
		distro = "Ubuntu"
	}

	// a batch file keeps wt.exe from re-parsing the wsl.exe arguments
	script := filepath.Join(s.tempDir(), "ccdash-resume.bat")
	body := fmt.Sprintf("@echo off\r\nwsl.exe -d %s -- bash -ic \"cd %s && %s\"\r\n",
		distro, shellEscape(cfg.WorkingDir), strings.ReplaceAll(cfg.Command, `"`, `\"`))
	if err := os.WriteFile(script, []byte(body), 0o600); err != nil {
		return fmt.Errorf("failed to write resume script: %w", err)
	}

	if err := s.start("wt.exe", "new-tab", "--title", "ccdash - Resume", "--", "cmd.exe", "/c", script); err == nil {
		return nil
	}
	return s.start("cmd.exe", "/c", "start", "ccdash", script)
}

func (s *Spawner) spawnCustom(cfg SpawnConfig) error {
	// Custom command template, replace placeholders
	// Template vars: {cwd}, {command}
	cmdStr := s.CustomCommand
	cmdStr = strings.ReplaceAll(cmdStr, "{cwd}", cfg.WorkingDir)
	cmdStr = strings.ReplaceAll(cmdStr, "{command}", cfg.Command)

	if s.goos == "windows" {
		return s.start("cmd", "/c", cmdStr)
	}
	return s.start("bash", "-c", cmdStr)
}

// shellEscape escapes a string for safe use in shell commands
func shellEscape(s string) string {
	// Simple escape: wrap in single quotes, escape single quotes
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// ShellEscape quotes s for a POSIX shell
func ShellEscape(s string) string {
	return shellEscape(s)
}
