package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"crkcam/config"
	"crkcam/host/bench"
	"crkcam/host/serial"
	"crkcam/protocol"
)

var (
	device     = flag.String("device", "", "Serial device path (overrides the profile)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides the profile)")
	configPath = flag.String("config", "", "JSON bench profile")
	offline    = flag.Bool("offline", false, "Do not connect; only the simulate command is available")
	verbose    = flag.Bool("verbose", false, "Trace raw protocol blocks")
)

func main() {
	flag.Parse()

	fmt.Printf("Crank/Cam Emulator Host (protocol %s)\n", protocol.Version)
	fmt.Println("==========================================")

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *baud != 0 {
		cfg.Serial.Baud = *baud
	}

	var client *bench.Client
	if !*offline {
		fmt.Printf("Connecting to emulator on %s...\n", cfg.Serial.Device)
		c, err := bench.ConnectWithConfig(&serial.Config{
			Device:      cfg.Serial.Device,
			Baud:        cfg.Serial.Baud,
			ReadTimeout: cfg.Serial.ReadTimeoutMS,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
			os.Exit(1)
		}
		defer c.Close()
		client = c

		if *verbose {
			client.SetTrace(func(dir string, block []byte) {
				fmt.Printf("  %s % x\n", dir, block)
			})
		}

		if err := setup(client, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}

		cmd, args := parts[0], parts[1:]
		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "simulate", "sim":
			if err := simulate(cfg, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		default:
			if client == nil {
				fmt.Println("Offline: only simulate is available")
				continue
			}
			if err := run(client, cmd, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// setup applies the profile's wheel selection and start speed
func setup(c *bench.Client, cfg *config.BenchConfig) error {
	if cfg.CustomCrank != nil || cfg.CustomCam != nil {
		fmt.Println("Custom wheels in the profile are used by simulate only")
	}
	if _, err := c.SelectConfig(cfg.Crank, cfg.Cam); err != nil {
		return err
	}
	st, err := c.Force(cfg.StartRPM)
	if err != nil {
		return err
	}
	printStatus(st)
	return nil
}

func run(c *bench.Client, cmd string, args []string) error {
	var (
		st  protocol.Status
		err error
	)

	switch cmd {
	case "status", "s":
		st, err = c.Status()

	case "set", "ramp", "inc", "dec", "force":
		want := 1
		if cmd == "ramp" {
			want = 2
		}
		var v []uint32
		if v, err = parseArgs(args, want); err != nil {
			return err
		}
		switch cmd {
		case "set":
			st, err = c.SetSpeed(v[0])
		case "ramp":
			st, err = c.Ramp(v[0], v[1])
		case "inc":
			st, err = c.Increment(v[0])
		case "dec":
			st, err = c.Decrement(v[0])
		case "force":
			st, err = c.Force(v[0])
		}

	case "select":
		var v []uint32
		if v, err = parseArgs(args, 2); err != nil {
			return err
		}
		if v[0] > 0xFF || v[1] > 0xFF {
			return fmt.Errorf("selectors are 0-255")
		}
		st, err = c.SelectConfig(uint8(v[0]), uint8(v[1]))

	default:
		fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		return nil
	}

	if err != nil {
		return err
	}
	printStatus(st)
	return nil
}

func simulate(cfg *config.BenchConfig, args []string) error {
	rpm, revs := cfg.StartRPM, uint32(2)
	if len(args) > 2 {
		return fmt.Errorf("usage: simulate [rpm [revs]]")
	}
	if len(args) > 0 {
		v, err := parseArgs(args, len(args))
		if err != nil {
			return err
		}
		rpm = v[0]
		if len(v) > 1 {
			revs = v[1]
		}
	}

	report, err := bench.Simulate(cfg, rpm, int(revs))
	if err != nil {
		return err
	}

	fmt.Printf("Simulated %d revolutions at %d rpm (prescaler %d, effective %d rpm, measured %d rpm)\n",
		report.Revolutions, report.RPM, report.Prescaler, report.EffectiveRPM, report.MeasuredRPM)
	fmt.Printf("  crank: %d edges/rev, first at %v\n", report.CrankEdges, head(report.CrankPositions, 6))
	fmt.Printf("  cam:   %d edges/rev, first at %v\n", report.CamEdges, head(report.CamPositions, 6))
	if report.Spurious > 0 {
		fmt.Printf("  %d spurious interrupts\n", report.Spurious)
	}
	return nil
}

func parseArgs(args []string, want int) ([]uint32, error) {
	if len(args) != want {
		return nil, fmt.Errorf("expected %d arguments, got %d", want, len(args))
	}
	out := make([]uint32, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(strings.TrimSuffix(a, "rpm"), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", a, err)
		}
		out[i] = uint32(v)
	}
	return out, nil
}

func head(v []uint32, n int) []uint32 {
	if len(v) < n {
		return v
	}
	return v[:n]
}

func printStatus(st protocol.Status) {
	state := "stopped"
	if st.Running {
		state = "running"
	}
	fmt.Printf("  %s at %d rpm (target %d), prescaler %d, backlog %d, crank %d, cam %d\n",
		state, st.RPM, st.Target, st.Prescaler, st.Backlog, st.Crank, st.Cam)
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  status              - Show emulator status")
	fmt.Println("  set <rpm>           - Queue a speed change")
	fmt.Println("  ramp <rpm> <ms>     - Queue a linear ramp")
	fmt.Println("  inc <rpm>           - Queue a relative increase")
	fmt.Println("  dec <rpm>           - Queue a relative decrease")
	fmt.Println("  force <rpm>         - Drop the backlog and jump to rpm")
	fmt.Println("  select <crank> <cam> - Switch wheel configuration")
	fmt.Println("  simulate [rpm [revs]] - Run the profile's wheels offline")
	fmt.Println("  quit/exit/q         - Exit the program")
	fmt.Println()
}
