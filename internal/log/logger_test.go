/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestInitWritesJSONToRotatingFile verifies the file sink carries static and
// component attributes.
func TestInitWritesJSONToRotatingFile(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "artdao.log")
	var console bytes.Buffer
	Init(Options{Level: "debug", Format: "json", File: fpath, Console: &console})
	t.Cleanup(func() { Init(Options{Console: &bytes.Buffer{}}) })

	l := WithOperation(WithComponent("session"), "connect")
	l.Info("wallet connected", Addr("0x52908400098527886E0F7030069857D2E4169EE7"))

	b, err := os.ReadFile(fpath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	sc := bufio.NewScanner(bytes.NewReader(b))
	var last string
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines written to %s", fpath)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	if m["app"] != "artdao" {
		t.Fatalf("app attr = %v", m["app"])
	}
	if m["component"] != "session" || m["op"] != "connect" {
		t.Fatalf("component/op attrs = %v/%v", m["component"], m["op"])
	}
	if m["addr"] != "0x5290…9EE7" {
		t.Fatalf("addr attr = %v", m["addr"])
	}
	if !strings.Contains(console.String(), "wallet connected") {
		t.Fatalf("console sink missed the record: %q", console.String())
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvLevel, "warn")
	t.Setenv(EnvFormat, "json")
	t.Setenv(EnvSource, "true")
	t.Setenv(EnvFile, "")

	opts := FromEnv()
	if opts.Level != "warn" || opts.Format != "json" || !opts.AddSource || opts.File != "" {
		t.Fatalf("FromEnv mismatch: %+v", opts)
	}
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	var h slog.Handler = &consoleHandler{level: slog.LevelWarn, w: &buf}

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatalf("info should be filtered at warn level")
	}
	h = h.WithAttrs([]slog.Attr{slog.String("k", "v")}).WithGroup("grp")

	r := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	r.AddAttrs(slog.Int("n", 42), slog.Float64("pi", 3.14), slog.String("msg2", "two words"))
	if err := h.Handle(context.Background(), r); err != nil {
		t.Fatalf("handle: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ERR boom", "k=v", "grp.n=42", "grp.pi=3.14", `grp.msg2="two words"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %q", out, want)
		}
	}
}

func TestAddrShortensOnlyLongValues(t *testing.T) {
	if got := Addr("0xabc").Value.String(); got != "0xabc" {
		t.Fatalf("short address changed: %q", got)
	}
}
