package isomap

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

// captureStderr runs fn with os.Stderr redirected and returns what it wrote.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	os.Stderr = w
	defer func() { os.Stderr = oldStderr }()

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		buf.ReadFrom(r)
		done <- buf.String()
	}()

	fn()
	w.Close()
	return <-done
}

func TestDebugMode_RebuildStats(t *testing.T) {
	SetDebugMode(true)
	defer SetDebugMode(false)

	c := newTestCache(t, 128, 128, sizedDecoder(16, 16))
	c.GetOrCreate(key(1)).IncRef()
	c.GetOrCreate(key(2))

	output := captureStderr(t, c.Rebuild)
	if !strings.Contains(output, "[isomap] cache rebuild: placed: 1 | evicted: 1 | pages: 1") {
		t.Errorf("expected rebuild stats in stderr, got: %q", output)
	}
}

func TestDebugMode_RenderStats(t *testing.T) {
	SetDebugMode(true)
	defer SetDebugMode(false)

	m := newTestMap(t, 8, 8, MapConfig{FillResource: 1})
	m.Cull(m.WorldBounds())
	output := captureStderr(t, func() { m.RenderList() })

	if !strings.Contains(output, "[isomap] render list:") {
		t.Errorf("expected render timing in stderr, got: %q", output)
	}
	if !strings.Contains(output, "visible: 64") {
		t.Errorf("expected visible count in stderr, got: %q", output)
	}
}

func TestReleaseMode_Silent(t *testing.T) {
	m := newTestMap(t, 8, 8, MapConfig{FillResource: 1})
	m.Cull(m.WorldBounds())
	output := captureStderr(t, func() {
		m.RenderList()
		m.Cache().Rebuild()
	})
	if output != "" {
		t.Errorf("debug output with debug mode off: %q", output)
	}
}

func TestDebugCheckRenderListSize(t *testing.T) {
	output := captureStderr(t, func() {
		debugCheckRenderListSize(debugMaxRenderList)
		debugCheckRenderListSize(debugMaxRenderList + 1)
	})
	if strings.Count(output, "warning: render list") != 1 {
		t.Errorf("expected exactly one warning, got: %q", output)
	}
}
