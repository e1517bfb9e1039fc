// Package twai manages a single TWAI (CAN) controller: install, start and
// end of the peripheral driver, message transmit and receive, and fault
// handling through periodic alert polling.
//
// It includes:
//   - A Controller with the lifecycle state machine, alert handling
//     (bus-off recovery, receive queue overflow) and a receive-draining Poll
//   - Bit rate to timing profile resolution for the supported silicon tiers
//   - A Driver interface for the peripheral, with an in-memory loopback
//     implementation and a Linux SocketCAN implementation
//   - A slog based Driver decorator
//
// A typical setup:
//
//	c, err := twai.New(drv, twai.DefaultConfig())
//	if err != nil { ... }
//	c.OnMessage(func(m twai.Message) { ... })
//	c.OnBusOff(func() { ... })
//	if err := c.Install(); err != nil { ... }
//	if err := c.Start(true); err != nil { ... }
//	defer c.End()
package twai
