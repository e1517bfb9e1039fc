package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/notnil/twai"
)

var (
	sendOpts = struct {
		timeout  time.Duration
		extended bool
		rtr      bool
	}{}

	sendCmd = &cobra.Command{
		Use:   "send <id> [hexdata]",
		Short: "Transmit one frame",
		Long:  "Transmit one frame. The identifier is hexadecimal; data is up to 8 bytes of hex, e.g. \"DEADBEEF\".",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runSend,
	}
)

func init() {
	sendCmd.Flags().DurationVarP(&sendOpts.timeout, "timeout", "t", 50*time.Millisecond, "transmit timeout")
	sendCmd.Flags().BoolVarP(&sendOpts.extended, "extended", "e", false, "force a 29-bit identifier")
	sendCmd.Flags().BoolVar(&sendOpts.rtr, "rtr", false, "send a remote transmission request")
}

// parseMessage builds a message from the id and optional hex data arguments.
func parseMessage(args []string, extended, rtr bool) (twai.Message, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 32)
	if err != nil {
		return twai.Message{}, fmt.Errorf("bad id %q: %w", args[0], err)
	}
	var data []byte
	if len(args) > 1 {
		if data, err = hex.DecodeString(args[1]); err != nil {
			return twai.Message{}, fmt.Errorf("bad data %q: %w", args[1], err)
		}
	}
	if len(data) > 8 {
		return twai.Message{}, twai.ErrInvalidLen
	}
	m := twai.Message{ID: uint32(id), Extended: extended || id > 0x7FF, RTR: rtr, Len: uint8(len(data))}
	copy(m.Data[:], data)
	return m, m.Validate()
}

func runSend(cmd *cobra.Command, args []string) error {
	m, err := parseMessage(args, sendOpts.extended, sendOpts.rtr)
	if err != nil {
		return err
	}
	logger := newLogger()
	c, _, err := openController(cmd, logger)
	if err != nil {
		return err
	}
	if err := c.Install(); err != nil {
		return err
	}
	if err := c.Start(false); err != nil {
		_ = c.End()
		return err
	}
	c.SetTxMessage(m)
	sendErr := c.SendMessage(sendOpts.timeout)
	if sendErr == nil {
		logger.Info("sent", "frame", m.String())
	}
	if err := c.End(); err != nil && sendErr == nil {
		return err
	}
	return sendErr
}
