// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"code.hybscloud.com/fiber"
)

func TestDefaultConfigValid(t *testing.T) {
	if err := fiber.DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig invalid: %v", err)
	}
}

func TestConfigValidateReportsEveryField(t *testing.T) {
	cfg := fiber.DefaultConfig()
	cfg.MaxOpCount = 0
	cfg.TimerQueueCapacity = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, field := range []string{"max_op_count", "timer_queue_capacity"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q does not mention %s", err, field)
		}
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := fiber.ParseConfig([]byte("max_op_count: 8\ntracing: true\ntrace_length: 4\n"), "inline")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	want := fiber.DefaultConfig()
	want.MaxOpCount = 8
	want.Tracing = true
	want.TraceLength = 4
	if cfg != want {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}

func TestParseConfigEmpty(t *testing.T) {
	cfg, err := fiber.ParseConfig(nil, "empty")
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg != fiber.DefaultConfig() {
		t.Fatalf("got %+v, want defaults", cfg)
	}
}

func TestParseConfigRejects(t *testing.T) {
	cases := map[string]string{
		"unknown field": "max_ops: 3\n",
		"invalid value": "max_op_count: -1\n",
		"bad yaml":      "max_op_count: [\n",
	}
	for name, data := range cases {
		if _, err := fiber.ParseConfig([]byte(data), name); err == nil {
			t.Errorf("%s: ParseConfig accepted %q", name, data)
		} else if !strings.Contains(err.Error(), name) {
			t.Errorf("%s: error %q lacks the source name", name, err)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runtime.yaml")
	if err := os.WriteFile(path, []byte("report_failures: false\ntimer_queue_capacity: 100\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := fiber.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ReportFailures || cfg.TimerQueueCapacity != 100 {
		t.Fatalf("got %+v", cfg)
	}

	rt := newRuntime(t, fiber.WithConfig(cfg))
	if rt.Config() != cfg {
		t.Fatalf("runtime config %+v, want %+v", rt.Config(), cfg)
	}
	if v := runValue(t, rt, fiber.Succeed(1)); v != 1 {
		t.Fatalf("got %d", v)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := fiber.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadConfig of a missing file succeeded")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	if _, err := fiber.New(fiber.WithMaxOpCount(0)); err == nil {
		t.Fatal("New accepted MaxOpCount 0")
	}
}

func TestRuntimeIdentity(t *testing.T) {
	a, b := newRuntime(t), newRuntime(t)
	if a.ID() == b.ID() {
		t.Fatal("two runtimes share an ID")
	}
	if a.Scheduler() == b.Scheduler() {
		t.Fatal("two runtimes share a scheduler")
	}
}
