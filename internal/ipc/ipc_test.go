package ipc

import (
	"sync"
	"testing"

	"github.com/displaykit/hwcplan/internal/display"
	"github.com/displaykit/hwcplan/internal/planner"
)

type fakeBackend struct {
	mu          sync.Mutex
	snap        planner.Snapshot
	invalidated int
	forced      int
	mirror      [2]int
	blanked     map[int]bool
	frames      int64
}

func (b *fakeBackend) Snapshot() planner.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap
}

func (b *fakeBackend) SetBlanked(id int, blanked bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.blanked == nil {
		b.blanked = make(map[int]bool)
	}
	b.blanked[id] = blanked
}

func (b *fakeBackend) SetMirror(id, srcID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mirror = [2]int{id, srcID}
}

func (b *fakeBackend) ForceSoftware(frames int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forced = frames
}

func (b *fakeBackend) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.invalidated++
}

func (b *fakeBackend) FramesPrepared() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

func startServer(t *testing.T, backend Backend) *Client {
	t.Helper()
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	srv, err := NewServer(backend)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(srv.Stop)

	return NewClient()
}

func TestStatusRoundTrip(t *testing.T) {
	backend := &fakeBackend{
		snap: planner.Snapshot{
			Displays: []planner.DisplayState{
				{ID: 0, Role: "primary", Kind: "lcd", MirrorOf: -1},
				{ID: 1, Role: "secondary", Kind: "hdmi", MirrorOf: 0},
			},
			ForceSoftware: 2,
		},
		frames: 17,
	}
	client := startServer(t, backend)

	status, err := client.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus() error: %v", err)
	}
	if status.Displays != 2 {
		t.Errorf("Displays = %d, want 2", status.Displays)
	}
	if status.Mirrored != 1 {
		t.Errorf("Mirrored = %d, want 1", status.Mirrored)
	}
	if status.ForceSoftware != 2 {
		t.Errorf("ForceSoftware = %d, want 2", status.ForceSoftware)
	}
	if status.FramesPrepared != 17 {
		t.Errorf("FramesPrepared = %d, want 17", status.FramesPrepared)
	}
	if !status.DaemonRunning {
		t.Error("DaemonRunning = false")
	}
}

func TestGetDisplays(t *testing.T) {
	backend := &fakeBackend{
		snap: planner.Snapshot{
			Displays: []planner.DisplayState{
				{
					ID: 0, Name: "builtin", Role: "primary", Kind: "lcd",
					Config:   display.ModeInfo{Width: 1280, Height: 720, RefreshHz: 60},
					MirrorOf: -1,
				},
			},
		},
	}
	client := startServer(t, backend)

	data, err := client.GetDisplays()
	if err != nil {
		t.Fatalf("GetDisplays() error: %v", err)
	}
	if len(data.Displays) != 1 {
		t.Fatalf("got %d displays, want 1", len(data.Displays))
	}
	d := data.Displays[0]
	if d.Name != "builtin" || d.Width != 1280 || d.Height != 720 || d.MirrorOf != -1 {
		t.Errorf("display = %+v", d)
	}
}

func TestDumpCarriesPlans(t *testing.T) {
	backend := &fakeBackend{
		snap: planner.Snapshot{
			Displays: []planner.DisplayState{
				{ID: 0, Role: "primary", Kind: "lcd", MirrorOf: -1,
					Plan: &planner.Plan{DisplayID: 0, UsedPipes: 2}},
			},
		},
	}
	client := startServer(t, backend)

	snap, err := client.Dump()
	if err != nil {
		t.Fatalf("Dump() error: %v", err)
	}
	if snap.Displays[0].Plan == nil || snap.Displays[0].Plan.UsedPipes != 2 {
		t.Errorf("plan = %+v, want 2 used pipes", snap.Displays[0].Plan)
	}
}

func TestControlCommands(t *testing.T) {
	backend := &fakeBackend{}
	client := startServer(t, backend)

	if err := client.Invalidate(); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if err := client.ForceSoftware(3); err != nil {
		t.Fatalf("ForceSoftware() error: %v", err)
	}
	if err := client.SetMirror(1, 0); err != nil {
		t.Fatalf("SetMirror() error: %v", err)
	}
	if err := client.SetBlank(1, true); err != nil {
		t.Fatalf("SetBlank() error: %v", err)
	}

	backend.mu.Lock()
	defer backend.mu.Unlock()
	// ForceSoftware also invalidates, so two invalidations total.
	if backend.invalidated != 2 {
		t.Errorf("invalidated = %d, want 2", backend.invalidated)
	}
	if backend.forced != 3 {
		t.Errorf("forced = %d, want 3", backend.forced)
	}
	if backend.mirror != [2]int{1, 0} {
		t.Errorf("mirror = %v, want [1 0]", backend.mirror)
	}
	if !backend.blanked[1] {
		t.Error("display 1 not blanked")
	}
}

func TestRejectsSelfMirror(t *testing.T) {
	client := startServer(t, &fakeBackend{})
	if err := client.SetMirror(1, 1); err == nil {
		t.Error("SetMirror(1, 1) accepted self-mirror")
	}
}

func TestRejectsNegativeForce(t *testing.T) {
	client := startServer(t, &fakeBackend{})
	if err := client.ForceSoftware(-1); err == nil {
		t.Error("ForceSoftware(-1) accepted")
	}
}
