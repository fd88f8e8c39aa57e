package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/term"

	"github.com/displaykit/hwcplan/internal/config"
	"github.com/displaykit/hwcplan/internal/display"
	"github.com/displaykit/hwcplan/internal/fbsim"
	"github.com/displaykit/hwcplan/internal/planner"
	"github.com/displaykit/hwcplan/internal/scenario"
	"github.com/displaykit/hwcplan/internal/tui"
)

// offlineDevice builds a device from a scenario without a daemon behind it.
func offlineDevice(scn *scenario.Scenario, cfg *config.Config, verbose bool) (*planner.Device, map[int]*display.Display) {
	out := io.Discard
	if verbose {
		out = os.Stderr
	}
	dev := planner.NewDevice(planner.Options{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(out, nil)),
	})

	displays := make(map[int]*display.Display)
	for _, d := range scn.BuildDisplays() {
		dev.AttachDisplay(d)
		displays[d.ID] = d
	}
	return dev, displays
}

func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Config file path")
	verbose := fs.Bool("v", false, "Log planner diagnostics to stderr")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan plan [--config PATH] <scenario.yaml>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Plan every frame of a scenario offline and print the plans as JSON.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	scn, err := scenario.Load(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	dev, _ := offlineDevice(scn, cfg, *verbose)

	type framePlans struct {
		Frame int                   `json:"frame"`
		Plans map[int]*planner.Plan `json:"plans"`
	}
	var result []framePlans

	for i, f := range scn.Frames {
		plans, err := dev.Prepare(f.BuildFrame())
		if err != nil {
			fmt.Fprintf(os.Stderr, "frame %d: %v\n", i, err)
			return 1
		}
		dev.Commit()
		result = append(result, framePlans{Frame: i, Plans: plans})
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

func runRender(args []string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Config file path")
	outDir := fs.String("out", ".", "Directory for the rendered PNG files")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan render [--config PATH] [--out DIR] <scenario.yaml>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Plan a scenario and render each display of each frame to a PNG,")
		fmt.Fprintln(os.Stderr, "composing layers the way the planned pipelines would.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	scn, err := scenario.Load(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	dev, displays := offlineDevice(scn, cfg, false)

	for i, f := range scn.Frames {
		frame := f.BuildFrame()
		plans, err := dev.Prepare(frame)
		if err != nil {
			fmt.Fprintf(os.Stderr, "frame %d: %v\n", i, err)
			return 1
		}
		dev.Commit()

		images, err := fbsim.RenderFrame(plans, frame, displays)
		if err != nil {
			fmt.Fprintf(os.Stderr, "frame %d: %v\n", i, err)
			return 1
		}
		for id, img := range images {
			name := filepath.Join(*outDir, fmt.Sprintf("frame%03d-display%d.png", i, id))
			if err := imaging.Save(img, name); err != nil {
				fmt.Fprintf(os.Stderr, "frame %d: %v\n", i, err)
				return 1
			}
			fmt.Println(name)
		}
	}
	return 0
}

func runTUI(args []string) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Config file path")

	if len(args) > 0 && (args[0] == "help" || args[0] == "-h" || args[0] == "--help") {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan tui [--config PATH] <scenario.yaml>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Interactive inspector stepping through a scenario's frames.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Keybindings:")
		fmt.Fprintln(os.Stderr, "  n/p, ←/→  Step frames")
		fmt.Fprintln(os.Stderr, "  Tab       Select display")
		fmt.Fprintln(os.Stderr, "  f         Replan with software composition forced")
		fmt.Fprintln(os.Stderr, "  b         Blank/unblank selected display")
		fmt.Fprintln(os.Stderr, "  q, Ctrl+C Quit")
		return 0
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan tui [--config PATH] <scenario.yaml>")
		return 2
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "tui requires an interactive terminal (stdin/stdout must be TTYs)")
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	scn, err := scenario.Load(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := tui.Run(scn, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
