package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bigbag/k5link/internal/detect"
	"github.com/bigbag/k5link/internal/host"
	"github.com/bigbag/k5link/internal/protocol"
	"github.com/bigbag/k5link/internal/serial"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	portFlag          string
	baudFlag          int
	keyFlag           string
	plainFlag         bool
	offsetFlag        int
	lengthFlag        int
	allowPasswordFlag bool
	rebootFlag        bool
	probeFlag         bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "k5link",
		Short: "Talk to UV-K5 style radios over the programming cable",
		Long: `k5link speaks the serial configuration protocol of UV-K5 style handheld
radios. It can read and write the radio's EEPROM, show telemetry, and emulate
a radio on a serial port for testing programming software.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			flag.CommandLine.Parse(nil)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	// Info command
	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show radio info",
		Long:  "Query the radio for its firmware version, lock state and telemetry.",
		RunE:  runInfo,
	}
	addPortFlags(infoCmd)

	// Dump command
	dumpCmd := &cobra.Command{
		Use:   "dump <eeprom.bin>",
		Short: "Read the radio's EEPROM into a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runDump,
	}
	addPortFlags(dumpCmd)
	addSessionFlags(dumpCmd)
	dumpCmd.Flags().IntVar(&offsetFlag, "offset", 0, "First EEPROM address to read")
	dumpCmd.Flags().IntVar(&lengthFlag, "length", protocol.EEPROMSize, "Number of bytes to read")

	// Restore command
	restoreCmd := &cobra.Command{
		Use:   "restore <eeprom.bin>",
		Short: "Write a file to the radio's EEPROM",
		Long: `Write a file to the radio's EEPROM in 8-byte chunks.

The radio skips the AES key area while locked and the power-on password
unless --allow-password is given. Those chunks are left unchanged.`,
		Args: cobra.ExactArgs(1),
		RunE: runRestore,
	}
	addPortFlags(restoreCmd)
	addSessionFlags(restoreCmd)
	restoreCmd.Flags().IntVar(&offsetFlag, "offset", 0, "First EEPROM address to write")
	restoreCmd.Flags().BoolVar(&allowPasswordFlag, "allow-password", false, "Also overwrite the power-on password")
	restoreCmd.Flags().BoolVar(&rebootFlag, "reboot", true, "Reboot the radio when done")

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("k5link %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE:  runList,
	}
	listCmd.Flags().BoolVar(&probeFlag, "probe", false, "Send a version query to each port and show which radios answer")
	listCmd.Flags().IntVarP(&baudFlag, "baud", "b", protocol.DefaultBaudRate, "Baud rate used when probing")

	rootCmd.AddCommand(infoCmd, dumpCmd, restoreCmd, newServeCmd(), versionCmd, listCmd)

	err := rootCmd.Execute()
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

func addPortFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port (auto-detect if not specified)")
	cmd.Flags().IntVarP(&baudFlag, "baud", "b", protocol.DefaultBaudRate, "Baud rate")
	cmd.Flags().BoolVar(&plainFlag, "plain", false, "Talk without payload obfuscation")
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&keyFlag, "key", "", "AES key as 32 hex digits (factory key if not specified)")
}

// parseKey decodes 16 key bytes given in EEPROM order.
func parseKey(s string) ([4]uint32, error) {
	if s == "" {
		return protocol.DefaultKey, nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return [4]uint32{}, fmt.Errorf("invalid key: %w", err)
	}
	if len(b) != 16 {
		return [4]uint32{}, fmt.Errorf("invalid key: %d bytes, want 16", len(b))
	}
	var kb [16]byte
	copy(kb[:], b)
	return protocol.BytesToWords(kb), nil
}

// connect opens the port, detecting a radio if none was named, and starts a
// session.
func connect() (*serial.Port, *host.Client, *protocol.VersionReply, error) {
	portName := portFlag
	if portName == "" {
		fmt.Println("Detecting radio...")
		result, err := detect.DetectDevice(baudFlag)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("radio detection failed: %w", err)
		}
		portName = result.Port
		fmt.Printf("Found %s on %s\n", result.Version, result.Port)
	}

	port, err := serial.Open(portName, baudFlag)
	if err != nil {
		return nil, nil, nil, err
	}

	fmt.Printf("Port: %s @ %d baud\n", portName, baudFlag)

	c := host.New(port)
	c.SetEncrypted(!plainFlag)

	v, err := c.Hello()
	if err != nil {
		port.Close()
		return nil, nil, nil, err
	}

	return port, c, v, nil
}

// unlock authenticates the session, continuing when the radio has no
// custom key and only the default key failed.
func unlock(c *host.Client, v *protocol.VersionReply) error {
	key, err := parseKey(keyFlag)
	if err != nil {
		return err
	}

	err = c.Unlock(key)
	var locked *host.LockedError
	switch {
	case err == nil:
		fmt.Println("Unlocked")
		return nil
	case errors.As(err, &locked) && !v.HasCustomKey && keyFlag == "":
		fmt.Println("Warning: radio rejected the factory key, key area is read-only")
		return nil
	default:
		return err
	}
}

func newBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func runInfo(cmd *cobra.Command, args []string) error {
	port, c, v, err := connect()
	if err != nil {
		return err
	}
	defer port.Close()

	printSession(v)

	rf, err := c.RF()
	if err != nil {
		return err
	}
	bat, err := c.Battery()
	if err != nil {
		return err
	}

	fmt.Printf("  RSSI:     %d (noise %d, glitch %d)\n", rf.RSSI, rf.Noise, rf.Glitch)
	fmt.Printf("  Battery:  %d.%02d V, current %d\n", bat.Voltage/100, bat.Voltage%100, bat.Current)
	return nil
}

func printSession(v *protocol.VersionReply) {
	fmt.Printf("  Firmware: %s\n", v.Version)
	fmt.Printf("  Custom key: %v\n", v.HasCustomKey)
	fmt.Printf("  Password lock: %v\n", v.PasswordLocked)
}

func runDump(cmd *cobra.Command, args []string) error {
	path := args[0]

	port, c, v, err := connect()
	if err != nil {
		return err
	}
	defer port.Close()

	printSession(v)
	if err := unlock(c, v); err != nil {
		return err
	}

	bar := newBar(lengthFlag, "Reading")
	c.SetProgressCallback(func(current, total int) {
		bar.Set(current)
	})

	data, err := c.Dump(offsetFlag, lengthFlag)
	if err != nil {
		return err
	}
	bar.Finish()

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Printf("\nSaved %d bytes from 0x%04X to %s\n", len(data), offsetFlag, path)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	fmt.Printf("Image: %s (%d bytes)\n", path, len(data))

	port, c, v, err := connect()
	if err != nil {
		return err
	}
	defer port.Close()

	printSession(v)
	if err := unlock(c, v); err != nil {
		return err
	}

	bar := newBar(len(data), "Writing")
	c.SetProgressCallback(func(current, total int) {
		bar.Set(current)
	})

	if err := c.Restore(offsetFlag, data, allowPasswordFlag); err != nil {
		return err
	}
	bar.Finish()
	fmt.Println("\nRestore complete!")

	if rebootFlag {
		fmt.Println("Rebooting radio...")
		if err := c.Reboot(); err != nil {
			fmt.Printf("Warning: reboot failed: %v\n", err)
		}
	}

	fmt.Println("Done!")
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPortDetails()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		if d := p.Describe(); d != "" {
			fmt.Printf("  %s (%s)\n", p.Name, d)
		} else {
			fmt.Printf("  %s\n", p.Name)
		}
	}

	if !probeFlag {
		return nil
	}

	radios, err := detect.ListDevices(baudFlag)
	if err != nil {
		return err
	}
	if len(radios) == 0 {
		fmt.Println("No radio answered")
		return nil
	}

	fmt.Println("Radios:")
	for _, r := range radios {
		fmt.Printf("  %s\n", describeRadio(r))
	}
	return nil
}

// describeRadio formats one probe result for the list command.
func describeRadio(r detect.Result) string {
	s := fmt.Sprintf("%s: %s", r.Port, r.Version)
	if r.HasCustomKey {
		s += ", custom key"
	}
	if r.PasswordLocked {
		s += ", password locked"
	}
	return s
}
