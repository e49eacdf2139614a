package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/bigbag/k5link/embedded"
	"github.com/bigbag/k5link/internal/aesblock"
	"github.com/bigbag/k5link/internal/engine"
	"github.com/bigbag/k5link/internal/protocol"
	"github.com/bigbag/k5link/internal/radio"
	"github.com/bigbag/k5link/internal/ring"
	"github.com/bigbag/k5link/internal/serial"
)

// sessionTick drives the configuration session countdown.
const sessionTick = 500 * time.Millisecond

var (
	serveEEPROMFlag   string
	serveFirmwareFlag string
	servePasswordFlag bool
	serveKilledFlag   bool
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Emulate a radio on a serial port",
		Long: `Emulate a radio on a serial port so programming software can be tested
without hardware. The EEPROM image is loaded from --eeprom if it exists and
saved back on reboot and on exit.`,
		RunE: runServe,
	}
	cmd.Flags().StringVarP(&portFlag, "port", "p", "", "Serial port to serve on (required)")
	cmd.Flags().IntVarP(&baudFlag, "baud", "b", protocol.DefaultBaudRate, "Baud rate")
	cmd.Flags().StringVar(&serveEEPROMFlag, "eeprom", "", "EEPROM image file")
	cmd.Flags().StringVar(&serveFirmwareFlag, "firmware", embedded.FirmwareVersion(), "Firmware version to report")
	cmd.Flags().BoolVar(&servePasswordFlag, "password-locked", false, "Report the power-on password lock as active")
	cmd.Flags().BoolVar(&serveKilledFlag, "killed", false, "Start remotely disabled until the killed flag is rewritten")
	cmd.MarkFlagRequired("port")
	return cmd
}

// emulator is one emulated radio behind a serial port.
type emulator struct {
	port *serial.Port
	rx   *ring.Buffer
	mem  *radio.Memory
	dev  *radio.Device
	eng  *engine.Engine

	rebooted chan struct{}
}

func newEmulator(port *serial.Port) (*emulator, error) {
	rx, err := ring.NewBuffer(ring.DefaultCapacity)
	if err != nil {
		return nil, err
	}

	e := &emulator{
		port:     port,
		rx:       rx,
		mem:      radio.NewMemory(),
		rebooted: make(chan struct{}, 1),
	}
	e.dev = radio.NewDevice(
		radio.WithPasswordLocked(servePasswordFlag),
		radio.WithKilled(serveKilledFlag),
		radio.WithResetHandler(e.onReset),
	)

	if serveEEPROMFlag != "" {
		err := e.mem.Load(serveEEPROMFlag)
		switch {
		case err == nil:
			glog.Infof("Loaded EEPROM image %s", serveEEPROMFlag)
		case errors.Is(err, os.ErrNotExist):
			glog.Infof("No EEPROM image at %s, starting erased", serveEEPROMFlag)
		default:
			return nil, err
		}
	}

	if err := e.boot(); err != nil {
		return nil, err
	}
	return e, nil
}

// boot builds a fresh engine, as after power-on.
func (e *emulator) boot() error {
	eng, err := engine.New(e.rx, engine.Deps{
		Transport: e.port,
		EEPROM:    e.mem,
		Cipher:    aesblock.Cipher{},
		Telemetry: e.dev,
		Power:     e.dev,
		System:    e.dev,
		Radio:     e.dev,
		Session:   e.dev,
	}, engine.WithFirmwareVersion(serveFirmwareFlag))
	if err != nil {
		return err
	}
	e.eng = eng
	return nil
}

func (e *emulator) onReset() {
	select {
	case e.rebooted <- struct{}{}:
	default:
	}
}

func (e *emulator) save() {
	if serveEEPROMFlag == "" || !e.mem.Dirty() {
		return
	}
	if err := e.mem.Save(serveEEPROMFlag); err != nil {
		glog.Warningf("Save EEPROM: %v", err)
		return
	}
	glog.Infof("Saved EEPROM image %s", serveEEPROMFlag)
}

// readLoop copies received bytes to out until the port fails.
func readLoop(port *serial.Port, out chan<- []byte, errc chan<- error) {
	buf := make([]byte, 64)
	for {
		n, err := port.Read(buf)
		if err != nil {
			errc <- err
			return
		}
		if n > 0 {
			out <- append([]byte(nil), buf[:n]...)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	port, err := serial.Open(portFlag, baudFlag)
	if err != nil {
		return err
	}
	defer port.Close()

	emu, err := newEmulator(port)
	if err != nil {
		return err
	}
	defer emu.save()

	fmt.Printf("Emulating %s on %s @ %d baud\n", serveFirmwareFlag, portFlag, baudFlag)
	glog.Infof("Serving on %s, custom key %v, killed %v", portFlag, emu.eng.HasCustomKey(), emu.dev.Killed())

	chunks := make(chan []byte, 16)
	errc := make(chan error, 1)
	go readLoop(port, chunks, errc)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	ticker := time.NewTicker(sessionTick)
	defer ticker.Stop()

	for {
		select {
		case b := <-chunks:
			emu.rx.Write(b)
			if n := emu.eng.Drain(); n > 0 {
				glog.V(1).Infof("Handled %d command(s)", n)
			}

		case <-ticker.C:
			if emu.dev.Tick() {
				glog.Info("Configuration session ended")
				emu.save()
			}

		case <-emu.rebooted:
			glog.Info("Reboot requested")
			emu.save()
			if err := emu.boot(); err != nil {
				return err
			}

		case err := <-errc:
			return fmt.Errorf("serial read failed: %w", err)

		case <-sig:
			fmt.Println("\nStopping")
			return nil
		}
	}
}
