package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/displaykit/hwcplan/internal/config"
	"github.com/displaykit/hwcplan/internal/daemon"
	"github.com/displaykit/hwcplan/internal/ipc"
	"github.com/displaykit/hwcplan/internal/planner"
	"github.com/displaykit/hwcplan/internal/scenario"
	"github.com/displaykit/hwcplan/internal/x11"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "displays":
		os.Exit(runDisplays(os.Args[2:]))
	case "outputs":
		os.Exit(runOutputs(os.Args[2:]))
	case "dump":
		os.Exit(runDump(os.Args[2:]))
	case "invalidate":
		os.Exit(runInvalidate(os.Args[2:]))
	case "force":
		os.Exit(runForce(os.Args[2:]))
	case "mirror":
		os.Exit(runMirror(os.Args[2:]))
	case "blank":
		os.Exit(runBlank(os.Args[2:]))
	case "plan":
		os.Exit(runPlan(os.Args[2:]))
	case "render":
		os.Exit(runRender(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: hwcplan <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the planning daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  displays            List the daemon's attached displays")
	fmt.Fprintln(w, "  outputs             List connected X11 outputs and their modes")
	fmt.Fprintln(w, "  dump                Dump the daemon's device state and last plans")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  invalidate          Ask the daemon to plan a fresh frame")
	fmt.Fprintln(w, "  force               Force software composition for N frames")
	fmt.Fprintln(w, "  mirror              Make one display clone another")
	fmt.Fprintln(w, "  blank               Blank or unblank a display")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  plan                Plan a scenario file offline, print plans as JSON")
	fmt.Fprintln(w, "  render              Plan and render a scenario's frames to PNG")
	fmt.Fprintln(w, "  tui                 Open the interactive plan inspector")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'hwcplan <command> --help' for command-specific options.")
}

// loadConfig loads the planner configuration, from the given path when set.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	configPath := fs.String("config", "", "Config file path")
	scenarioPath := fs.String("scenario", "", "Scenario file supplying frame contents")
	useX11 := fs.Bool("x11", false, "Follow X11 output hotplug")
	pollInterval := fs.Duration("poll", 2*time.Second, "Output poll interval with --x11")
	idleTimeout := fs.Duration("idle", 0, "Idle timeout before handing pipelines to software (default from config)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan daemon [--config PATH] [--scenario PATH] [--x11] [--idle D]")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if *scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "daemon requires --scenario")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	scn, err := scenario.Load(*scenarioPath)
	if err != nil {
		log.Fatalf("Failed to load scenario: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	dev := planner.NewDevice(planner.Options{
		Config: cfg,
		Logger: logger,
	})
	for _, d := range scn.BuildDisplays() {
		dev.AttachDisplay(d)
	}

	idle := *idleTimeout
	if idle == 0 && cfg.Behavior.IdleTimeoutMS > 0 {
		idle = time.Duration(cfg.Behavior.IdleTimeoutMS) * time.Millisecond
	}

	dmn := daemon.New(daemon.Config{
		IdleTimeout: idle,
		Platform:    cfg.Platform,
		Logger:      logger,
	}, dev, scn.NewSource())

	ipcServer, err := ipc.NewServer(dmn)
	if err != nil {
		log.Fatalf("Failed to create IPC server: %v", err)
	}
	if err := ipcServer.Start(); err != nil {
		log.Fatalf("Failed to start IPC server: %v", err)
	}
	defer ipcServer.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *useX11 {
		conn, err := x11.NewConnection()
		if err != nil {
			log.Fatalf("Failed to connect to X server: %v", err)
		}
		defer conn.Close()
		go dmn.WatchOutputs(ctx, conn, *pollInterval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down hwcplan daemon...")
		cancel()
	}()

	dmn.Run(ctx)
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan status")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running:  %v\n", status.DaemonRunning)
	fmt.Printf("displays:        %d\n", status.Displays)
	fmt.Printf("mirrored:        %d\n", status.Mirrored)
	fmt.Printf("force_software:  %d\n", status.ForceSoftware)
	fmt.Printf("frames_prepared: %d\n", status.FramesPrepared)
	fmt.Printf("uptime_seconds:  %d\n", status.UptimeSeconds)
	return 0
}

func runDisplays(args []string) int {
	fs := flag.NewFlagSet("displays", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Output as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan displays [--json]")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	client := ipc.NewClient()
	data, err := client.GetDisplays()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *asJSON {
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(string(out))
		return 0
	}

	for _, d := range data.Displays {
		line := fmt.Sprintf("%d  %-8s %-9s %dx%d@%d", d.ID, d.Kind, d.Role,
			d.Width, d.Height, d.RefreshHz)
		if d.Name != "" {
			line += "  " + d.Name
		}
		if d.MirrorOf >= 0 {
			line += fmt.Sprintf("  mirrors %d", d.MirrorOf)
		}
		if d.Blanked {
			line += "  (blanked)"
		}
		fmt.Println(line)
	}
	return 0
}

func runOutputs(args []string) int {
	fs := flag.NewFlagSet("outputs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan outputs")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List connected X11 outputs with their mode catalogs.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	conn, err := x11.NewConnection()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer conn.Close()

	outputs, err := conn.Outputs()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	for _, o := range outputs {
		primary := ""
		if o.Primary {
			primary = " (primary)"
		}
		fmt.Printf("%s%s  %dx%d@%d  %dmm x %dmm\n", o.Name, primary,
			o.Width, o.Height, o.RefreshHz, o.PhysWidthMM, o.PhysHeightMM)
		for _, m := range o.Modes {
			fmt.Printf("    %s\n", m)
		}
	}
	return 0
}

func runDump(args []string) int {
	fs := flag.NewFlagSet("dump", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan dump")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Print the daemon's device snapshot, including the last plans.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	client := ipc.NewClient()
	snap, err := client.Dump()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

func runInvalidate(args []string) int {
	fs := flag.NewFlagSet("invalidate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan invalidate")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	client := ipc.NewClient()
	if err := client.Invalidate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runForce(args []string) int {
	fs := flag.NewFlagSet("force", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	frames := fs.Int("frames", 2, "Number of frames to force software composition")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan force [--frames N]")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	client := ipc.NewClient()
	if err := client.ForceSoftware(*frames); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runMirror(args []string) int {
	fs := flag.NewFlagSet("mirror", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	off := fs.Bool("off", false, "Stop mirroring instead")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan mirror <display> <source>")
		fmt.Fprintln(os.Stderr, "       hwcplan mirror --off <display>")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	var displayID, sourceID int
	switch {
	case *off && fs.NArg() == 1:
		if _, err := fmt.Sscanf(fs.Arg(0), "%d", &displayID); err != nil {
			fs.Usage()
			return 2
		}
		sourceID = -1
	case !*off && fs.NArg() == 2:
		if _, err := fmt.Sscanf(fs.Arg(0), "%d", &displayID); err != nil {
			fs.Usage()
			return 2
		}
		if _, err := fmt.Sscanf(fs.Arg(1), "%d", &sourceID); err != nil {
			fs.Usage()
			return 2
		}
	default:
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	if err := client.SetMirror(displayID, sourceID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func runBlank(args []string) int {
	fs := flag.NewFlagSet("blank", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	off := fs.Bool("off", false, "Unblank instead")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: hwcplan blank [--off] <display>")
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

	var displayID int
	if _, err := fmt.Sscanf(fs.Arg(0), "%d", &displayID); err != nil {
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	if err := client.SetBlank(displayID, !*off); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
