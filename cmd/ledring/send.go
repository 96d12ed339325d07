package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/coreman2200/ledring/internal/protocol"
	"github.com/coreman2200/ledring/internal/sector"
	"github.com/coreman2200/ledring/internal/serialport"
)

// CreateSendCmd creates the host side SetColors command.
func CreateSendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send COLOR...",
		Short: "Send a SetColors frame to a controller",
		Long: `Send encodes the given colors (RRGGBB, #RRGGBB or 0xRRGGBB) starting at
sector 0, writes one SetColors frame to the serial port and prints the status
byte the controller answers with.`,
		Example: `  ledring send -p /dev/ttyUSB0 ff0000 00ff00 0000ff`,
		Args:    cobra.MinimumNArgs(1),
		RunE:    sendColors,
	}
	f := cmd.Flags()
	f.StringP("port", "p", "/dev/ttyUSB0", "serial device")
	f.Int("baud", serialport.DefaultBaud, "serial baud rate")
	f.String("layout", "rgb", "payload layout: rgb | legacy")
	f.Duration("timeout", protocol.DefaultTimeout+500*time.Millisecond, "how long to wait for the status byte")
	return cmd
}

func sendColors(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	loggingFlags(cmd, "info", false)

	layoutName, _ := f.GetString("layout")
	layout, err := sector.ParseLayout(layoutName)
	if err != nil {
		return err
	}
	colors := make([]sector.Color, 0, len(args))
	for _, a := range args {
		c, err := sector.ParseColor(a)
		if err != nil {
			return err
		}
		colors = append(colors, c)
	}

	name, _ := f.GetString("port")
	baud, _ := f.GetInt("baud")
	timeout, _ := f.GetDuration("timeout")
	port, err := serialport.Open(name, baud, log.Logger)
	if err != nil {
		return err
	}
	defer port.Close()

	client := protocol.NewClient(port, layout)
	client.SetTimeout(timeout)
	if err := client.SetColors(context.Background(), colors); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%#02x)\n", protocol.StatusSuccess, byte(protocol.StatusSuccess))
	return nil
}
