package terminal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type launch struct {
	name string
	args []string
}

func testSpawner(goos string, env map[string]string, tools ...string) (*Spawner, *[]launch) {
	var launches []launch
	installed := map[string]bool{}
	for _, t := range tools {
		installed[t] = true
	}
	s := &Spawner{
		goos:   goos,
		getenv: func(k string) string { return env[k] },
		lookPath: func(name string) (string, error) {
			if installed[name] {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
		start: func(name string, args ...string) error {
			launches = append(launches, launch{name, args})
			return nil
		},
		tempDir: os.TempDir,
	}
	return s, &launches
}

var cfg = SpawnConfig{WorkingDir: "/work/my app", Command: "claude --resume abc"}

func TestSpawn_Detection(t *testing.T) {
	tests := []struct {
		name     string
		goos     string
		env      map[string]string
		tools    []string
		wantName string
	}{
		{"ghostty env", "darwin", map[string]string{"TERM_PROGRAM": "ghostty"}, nil, "ghostty"},
		{"iterm env", "darwin", map[string]string{"TERM_PROGRAM": "iTerm.app"}, nil, "osascript"},
		{"wezterm env", "linux", map[string]string{"TERM_PROGRAM": "WezTerm"}, nil, "wezterm"},
		{"kitty on path", "linux", nil, []string{"kitty"}, "kitty"},
		{"mac fallback", "darwin", nil, nil, "osascript"},
		{"gnome terminal", "linux", nil, []string{"gnome-terminal", "xterm"}, "gnome-terminal"},
		{"xterm last", "linux", nil, []string{"xterm"}, "xterm"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, launches := testSpawner(tt.goos, tt.env, tt.tools...)
			require.NoError(t, s.Spawn(cfg))
			require.Len(t, *launches, 1)
			assert.Equal(t, tt.wantName, (*launches)[0].name)
		})
	}
}

func TestSpawn_LinuxArgs(t *testing.T) {
	s, launches := testSpawner("linux", nil, "gnome-terminal")
	require.NoError(t, s.Spawn(cfg))
	assert.Equal(t, []string{"--", "bash", "-c", "cd '/work/my app' && claude --resume abc"}, (*launches)[0].args)
}

func TestSpawn_NoTerminal(t *testing.T) {
	s, _ := testSpawner("linux", nil)
	assert.ErrorIs(t, s.Spawn(cfg), ErrNoTerminal)
}

func TestSpawn_Custom(t *testing.T) {
	s, launches := testSpawner("linux", nil)
	s.CustomCommand = "alacritty --working-directory {cwd} -e {command}"

	require.NoError(t, s.Spawn(cfg))
	assert.Equal(t, launch{"bash", []string{"-c", "alacritty --working-directory /work/my app -e claude --resume abc"}}, (*launches)[0])
}

func TestSpawn_WindowsWSL(t *testing.T) {
	s, launches := testSpawner("windows", nil)
	s.UseWSL = true
	s.WSLDistro = "Debian"
	dir := t.TempDir()
	s.tempDir = func() string { return dir }

	require.NoError(t, s.Spawn(cfg))
	require.Len(t, *launches, 1)
	assert.Equal(t, "wt.exe", (*launches)[0].name)

	script, err := os.ReadFile(filepath.Join(dir, "ccdash-resume.bat"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(script), "@echo off\r\nwsl.exe -d Debian -- bash -ic"))
	assert.Contains(t, string(script), "cd '/work/my app' && claude --resume abc")
}

func TestSpawn_WindowsWSLFallsBackToCmd(t *testing.T) {
	s, _ := testSpawner("windows", nil)
	s.UseWSL = true
	dir := t.TempDir()
	s.tempDir = func() string { return dir }

	var names []string
	s.start = func(name string, args ...string) error {
		names = append(names, name)
		if name == "wt.exe" {
			return errors.New("not installed")
		}
		return nil
	}

	require.NoError(t, s.Spawn(cfg))
	assert.Equal(t, []string{"wt.exe", "cmd.exe"}, names)
}

func TestSpawn_WindowsNative(t *testing.T) {
	s, launches := testSpawner("windows", nil)
	require.NoError(t, s.Spawn(SpawnConfig{WorkingDir: `C:\src`, Command: "claude --resume abc"}))
	assert.Equal(t, launch{"cmd", []string{"/c", "start", "cmd", "/k", `cd /d "C:\src" && claude --resume abc`}}, (*launches)[0])
}

func TestShellEscape(t *testing.T) {
	assert.Equal(t, `'it'\''s'`, ShellEscape("it's"))
	assert.Equal(t, `'plain'`, ShellEscape("plain"))
}
