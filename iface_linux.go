//go:build linux

package twai

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"golang.org/x/sys/unix"
)

// Linux network interface helpers.
// These toggle the IFF_UP flag via ioctl on a SOCK_DGRAM socket.
//
// Notes:
// - Bringing interfaces up/down requires CAP_NET_ADMIN. When run without
//   sufficient privileges they return EPERM.

func checkIfName(name string) error {
	if len(name) == 0 || len(name) >= unix.IFNAMSIZ {
		return fmt.Errorf("twai: invalid interface name %q", name)
	}
	return nil
}

func getInterfaceFlags(name string) (uint16, error) {
	if err := checkIfName(name); err != nil {
		return 0, err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return 0, err
	}
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return 0, err
	}
	return ifr.Uint16(), nil
}

func setInterfaceFlags(name string, flags uint16) error {
	if err := checkIfName(name); err != nil {
		return err
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return err
	}
	ifr.SetUint16(flags)
	return unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, ifr)
}

// IsInterfaceUp returns true if the Linux network interface has IFF_UP set.
func IsInterfaceUp(name string) (bool, error) {
	flags, err := getInterfaceFlags(name)
	if err != nil {
		return false, err
	}
	return flags&unix.IFF_UP != 0, nil
}

// SetInterfaceUp sets IFF_UP on the given interface. Requires CAP_NET_ADMIN.
func SetInterfaceUp(name string) error {
	flags, err := getInterfaceFlags(name)
	if err != nil {
		return err
	}
	if flags&unix.IFF_UP != 0 {
		return nil
	}
	return setInterfaceFlags(name, flags|unix.IFF_UP)
}

// SetInterfaceDown clears IFF_UP on the given interface. Requires CAP_NET_ADMIN.
func SetInterfaceDown(name string) error {
	flags, err := getInterfaceFlags(name)
	if err != nil {
		return err
	}
	if flags&unix.IFF_UP == 0 {
		return nil
	}
	return setInterfaceFlags(name, flags&^unix.IFF_UP)
}

// RequireRootOrCapNetAdmin maps EPERM to an error advising to grant
// CAP_NET_ADMIN to the binary.
func RequireRootOrCapNetAdmin(err error) error {
	if errors.Is(err, unix.EPERM) {
		return fmt.Errorf("operation requires CAP_NET_ADMIN (or root): %w", err)
	}
	return err
}

// LinuxCANInterfaceOptions controls CAN interface parameters through the
// system `ip` tool. Nil fields are left unchanged.
//
// Changing bitrate, restart-ms, listen-only or loopback requires the
// interface to be DOWN.
type LinuxCANInterfaceOptions struct {
	// Bitrate sets the arbitration bit rate in bits per second.
	Bitrate *uint32
	// RestartMs sets the automatic bus-off restart delay; 0 disables it.
	RestartMs *uint32
	// TxQueueLen sets the transmit queue length (packets).
	TxQueueLen *int
	// ListenOnly turns the controller's listen-only mode on or off.
	ListenOnly *bool
	// Loopback turns the controller's loopback mode on or off.
	Loopback *bool
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// canLinkArgs builds the `ip link set ... type can` arguments, or nil when
// no CAN specific option is set.
func canLinkArgs(name string, opts LinuxCANInterfaceOptions) []string {
	var args []string
	if opts.Bitrate != nil {
		args = append(args, "bitrate", strconv.FormatUint(uint64(*opts.Bitrate), 10))
	}
	if opts.RestartMs != nil {
		args = append(args, "restart-ms", strconv.FormatUint(uint64(*opts.RestartMs), 10))
	}
	if opts.ListenOnly != nil {
		args = append(args, "listen-only", onOff(*opts.ListenOnly))
	}
	if opts.Loopback != nil {
		args = append(args, "loopback", onOff(*opts.Loopback))
	}
	if len(args) == 0 {
		return nil
	}
	return append([]string{"link", "set", "dev", name, "type", "can"}, args...)
}

// ConfigureLinuxCANInterface applies opts to a Linux CAN network interface
// by invoking `ip` (iproute2). Requires CAP_NET_ADMIN (or root).
func ConfigureLinuxCANInterface(name string, opts LinuxCANInterfaceOptions) error {
	if err := checkIfName(name); err != nil {
		return err
	}
	if opts.TxQueueLen != nil {
		if err := runIP("link", "set", "dev", name, "txqueuelen", strconv.Itoa(*opts.TxQueueLen)); err != nil {
			return err
		}
	}
	if args := canLinkArgs(name, opts); args != nil {
		return runIP(args...)
	}
	return nil
}

// RestartLinuxCANInterface requests a manual bus-off restart.
func RestartLinuxCANInterface(name string) error {
	if err := checkIfName(name); err != nil {
		return err
	}
	return runIP("link", "set", "dev", name, "type", "can", "restart")
}

func runIP(args ...string) error {
	out, err := exec.Command("ip", args...).CombinedOutput()
	if err != nil {
		return RequireRootOrCapNetAdmin(fmt.Errorf("ip %v failed: %w; output: %s", args, err, string(out)))
	}
	return nil
}
