//go:build !linux

package twai

// SocketCANDriver is only available on Linux.
type SocketCANDriver struct{ Driver }

// NewSocketCANDriver reports ErrNotSupported outside Linux.
func NewSocketCANDriver(iface string, opts SocketCANOptions) (*SocketCANDriver, error) {
	return nil, ErrNotSupported
}
