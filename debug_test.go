// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ndeftext

import (
	"bytes"
	"io"
	"os"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureDebug swaps the log writers for buffers for the duration of a test.
// Tests using it must not run in parallel.
func captureDebug(t *testing.T, console bool) (session, stdout *bytes.Buffer) {
	t.Helper()

	logMu.Lock()
	origEnabled, origSession, origConsole := debugEnabled, sessionLogWriter, logWriter
	session, stdout = &bytes.Buffer{}, &bytes.Buffer{}
	debugEnabled, sessionLogWriter, logWriter = console, session, stdout
	logMu.Unlock()

	t.Cleanup(func() {
		logMu.Lock()
		debugEnabled, sessionLogWriter, logWriter = origEnabled, origSession, origConsole
		logMu.Unlock()
	})
	return session, stdout
}

func TestDebugf_WritesToSessionLog(t *testing.T) {
	session, stdout := captureDebug(t, false)

	Debugf("int: %d, string: %s, hex: %02X", 42, "test", 0xAB)

	assert.Contains(t, session.String(), "DEBUG: int: 42, string: test, hex: AB\n")
	assert.Empty(t, stdout.String(), "console output must stay off when debug is disabled")
}

func TestDebugf_IncludesTimestamp(t *testing.T) {
	session, _ := captureDebug(t, false)

	Debugf("test message")

	matched, err := regexp.MatchString(`^\d{2}:\d{2}:\d{2}\.\d{3} DEBUG:`, session.String())
	require.NoError(t, err)
	assert.True(t, matched, "got: %s", session.String())
}

func TestDebugln_JoinsOperands(t *testing.T) {
	session, stdout := captureDebug(t, true)

	Debugln("value1", 42, true)

	assert.Contains(t, session.String(), "DEBUG: value1 42 true\n")
	assert.Equal(t, "DEBUG: value1 42 true\n", stdout.String())
}

func TestDebugf_MultipleMessages(t *testing.T) {
	session, _ := captureDebug(t, false)

	Debugf("message 1")
	Debugf("message 2")
	Debugf("message 3")

	lines := strings.Split(strings.TrimSpace(session.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[2], "message 3")
}

func TestDebugf_NilSessionWriter(t *testing.T) {
	captureDebug(t, false)
	logMu.Lock()
	sessionLogWriter = nil
	logMu.Unlock()

	assert.NotPanics(t, func() { Debugf("test message %d", 42) })
}

func TestSetDebugEnabled(t *testing.T) {
	captureDebug(t, false)

	SetDebugEnabled(true)
	assert.True(t, DebugEnabled())
	SetDebugEnabled(false)
	assert.False(t, DebugEnabled())
}

func TestSessionLog_Lifecycle(t *testing.T) {
	captureDebug(t, false)
	logMu.Lock()
	sessionLogWriter = nil
	logMu.Unlock()
	t.Cleanup(func() { _ = CloseSessionLog() })

	dir := t.TempDir()
	path, err := InitSessionLog(dir)
	require.NoError(t, err)
	assert.Equal(t, path, SessionLogPath())
	assert.Regexp(t, `ndeftext_\d{8}_\d{6}\.log$`, path)

	Debugf("tag %s written", "04aa")
	require.NoError(t, CloseSessionLog())
	assert.Empty(t, SessionLogPath())

	f, err := os.Open(path) //nolint:gosec // path comes from InitSessionLog
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	content, err := io.ReadAll(f)
	require.NoError(t, err)

	assert.Contains(t, string(content), "=== NDEF Text Debug Session Log ===")
	assert.Contains(t, string(content), "PID:")
	assert.Contains(t, string(content), "DEBUG: tag 04aa written")
	assert.Contains(t, string(content), "=== Session ended ===")
}

func TestCloseSessionLog_NoFile(t *testing.T) {
	assert.NoError(t, CloseSessionLog())
}

func TestInitSessionLog_BadDirectory(t *testing.T) {
	_, err := InitSessionLog("/nonexistent/dir/for/ndeftext")
	require.Error(t, err)
}

func TestWriteSessionHeader(t *testing.T) {
	var buf strings.Builder
	writeSessionHeader(&buf)

	content := buf.String()
	assert.True(t, strings.HasPrefix(content, "=== NDEF Text Debug Session Log ==="))
	for _, field := range []string{"Started:", "PID:", "OS:", "Go Version:", "Command Line:"} {
		assert.Contains(t, content, field)
	}
}

func TestInitSessionLog_ReplacesOpenLog(t *testing.T) {
	captureDebug(t, false)
	t.Cleanup(func() { _ = CloseSessionLog() })

	first, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)
	second, err := InitSessionLog(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, second, SessionLogPath())

	Debugf("after reopen")
	require.NoError(t, CloseSessionLog())

	old, err := os.ReadFile(first) //nolint:gosec // path comes from InitSessionLog
	require.NoError(t, err)
	assert.NotContains(t, string(old), "after reopen")
	current, err := os.ReadFile(second) //nolint:gosec // path comes from InitSessionLog
	require.NoError(t, err)
	assert.Contains(t, string(current), "after reopen")
}
