package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"pimaster/core"
	"pimaster/protocol"
	"pimaster/registers"
	"pimaster/sim"
)

func boardFrom(c *ishell.Context) *sim.Board {
	return c.Get(boardKey).(*sim.Board)
}

func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(s, 0, bits)
}

func parseBytes(args []string) ([]byte, error) {
	out := make([]byte, len(args))
	for i, a := range args {
		v, err := parseUint(a, 8)
		if err != nil {
			return nil, fmt.Errorf("Invalid byte %q: %v", a, err)
		}
		out[i] = byte(v)
	}
	return out, nil
}

func parseFunction(c *ishell.Context) (core.FunctionID, bool) {
	if len(c.Args) < 1 {
		c.Err(fmt.Errorf("FUNCTION required"))
		return 0, false
	}
	v, err := parseUint(c.Args[0], 8)
	if err != nil || v >= core.FunctionCount {
		c.Err(fmt.Errorf("Invalid FUNCTION %q", c.Args[0]))
		return 0, false
	}
	return core.FunctionID(v), true
}

var commands = []*ishell.Cmd{
	{
		Name:    "xfer",
		Aliases: []string{"x"},
		Help:    "BYTE... raw framed transfer, prints MISO",
		Func: func(c *ishell.Context) {
			mosi, err := parseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			miso, err := boardFrom(c).Transfer(mosi)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("% x\n", miso)
		},
	},
	{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "ADDR [COUNT] read register bytes",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("ADDR required"))
				return
			}
			addr, err := parseUint(c.Args[0], 16)
			if err != nil {
				c.Err(fmt.Errorf("Invalid ADDR: %v", err))
				return
			}
			n := uint64(1)
			if len(c.Args) > 1 {
				if n, err = parseUint(c.Args[1], 12); err != nil {
					c.Err(fmt.Errorf("Invalid COUNT: %v", err))
					return
				}
			}
			data, err := boardFrom(c).Client.Read(uint16(addr), int(n))
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%04x: % x\n", addr, data)
		},
	},
	{
		Name: "send",
		Help: "BYTE... queue an outbound message",
		Func: func(c *ishell.Context) {
			payload, err := parseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err := boardFrom(c).Client.Send(payload); err != nil {
				c.Err(err)
				return
			}
			send, _ := boardFrom(c).Registers.Pending()
			c.Printf("OK (%d queued)\n", send)
		},
	},
	{
		Name: "recv",
		Help: "COUNT read and pop the inbound queue front",
		Func: func(c *ishell.Context) {
			n := uint64(registers.SlotSize)
			if len(c.Args) > 0 {
				var err error
				if n, err = parseUint(c.Args[0], 12); err != nil {
					c.Err(fmt.Errorf("Invalid COUNT: %v", err))
					return
				}
			}
			data, err := boardFrom(c).Client.Recv(int(n))
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("% x\n", data)
		},
	},
	{
		Name: "deliver",
		Help: "BYTE... put a message on the inbound queue",
		Func: func(c *ishell.Context) {
			msg, err := parseBytes(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err := boardFrom(c).Registers.Deliver(msg); err != nil {
				c.Err(err)
			}
		},
	},
	{
		Name:    "outbound",
		Aliases: []string{"out"},
		Help:    "take the oldest outbound message",
		Func: func(c *ishell.Context) {
			msg, err := boardFrom(c).Registers.Outbound()
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("% x\n", msg)
		},
	},
	{
		Name: "enable",
		Help: "FUNCTION switch a board function on",
		Func: func(c *ishell.Context) {
			if fn, ok := parseFunction(c); ok {
				if err := boardFrom(c).Client.Enable(fn); err != nil {
					c.Err(err)
				}
			}
		},
	},
	{
		Name: "disable",
		Help: "FUNCTION switch a board function off",
		Func: func(c *ishell.Context) {
			if fn, ok := parseFunction(c); ok {
				if err := boardFrom(c).Client.Disable(fn); err != nil {
					c.Err(err)
				}
			}
		},
	},
	{
		Name: "test",
		Help: "COUNT run the echo diagnostic",
		Func: func(c *ishell.Context) {
			n := uint64(4)
			if len(c.Args) > 0 {
				var err error
				if n, err = parseUint(c.Args[0], 12); err != nil {
					c.Err(fmt.Errorf("Invalid COUNT: %v", err))
					return
				}
			}
			echo, err := boardFrom(c).Client.Test(int(n))
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("% x\n", echo)
		},
	},
	{
		Name: "reset",
		Help: "ask the board to reset itself",
		Func: func(c *ishell.Context) {
			b := boardFrom(c)
			if err := b.Client.Reset(); err != nil {
				c.Err(err)
				return
			}
			c.Printf("resets=%d halted=%v\n", b.Resets(), b.Slave.Halted())
		},
	},
	{
		Name: "run",
		Help: "MICROSECONDS advance simulated time",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("MICROSECONDS required"))
				return
			}
			us, err := parseUint(c.Args[0], 32)
			if err != nil {
				c.Err(fmt.Errorf("Invalid MICROSECONDS: %v", err))
				return
			}
			b := boardFrom(c)
			b.Run(uint32(us))
			c.Printf("sequences=%d faults=%d\n", b.Converter.Sequences, b.Reactor.Faults())
		},
	},
	{
		Name: "input",
		Help: "CHANNEL RAW set an analog input (bus, sense, reference)",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("CHANNEL RAW required"))
				return
			}
			slot, ok := sim.ChannelSlot(c.Args[0])
			if !ok {
				c.Err(fmt.Errorf("Unknown CHANNEL %q", c.Args[0]))
				return
			}
			raw, err := parseUint(c.Args[1], 12)
			if err != nil {
				c.Err(fmt.Errorf("Invalid RAW: %v", err))
				return
			}
			boardFrom(c).Converter.SetInput(slot, uint16(raw))
		},
	},
	{
		Name: "overrun",
		Help: "make the next conversion sequence overrun",
		Func: func(c *ishell.Context) {
			boardFrom(c).Converter.InjectOverrun()
		},
	},
	{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "read the status register over the link",
		Func: func(c *ishell.Context) {
			b := boardFrom(c)
			bits, err := b.Client.Status()
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("status=%08x functions=%04x sampler=%s faults=%d\n",
				uint32(bits), b.Functions.State(), b.Sampler.State(), b.Reactor.Faults())
		},
	},
	{
		Name:    "levels",
		Aliases: []string{"lv"},
		Help:    "read the sample array over the link",
		Func: func(c *ishell.Context) {
			levels, err := boardFrom(c).Client.Levels()
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("bus=%d sense=%d ref=%d threshold=%d snapshot=%d\n",
				levels[core.SlotBus], levels[core.SlotSense], levels[core.SlotReference],
				levels[core.SlotThreshold], levels[core.SlotSnapshot])
		},
	},
	{
		Name:    "telemetry",
		Aliases: []string{"tm"},
		Help:    "print converted levels",
		Func: func(c *ishell.Context) {
			b := boardFrom(c)
			c.Println(core.NewTelemetry(b.Sampler, b.Status, 0).Report())
		},
	},
	{
		Name:    "events",
		Aliases: []string{"ev"},
		Help:    "[clear|<opcode>] print or clear the event ring, or list commands of one opcode",
		Func: func(c *ishell.Context) {
			filter := protocol.OpUnsupported
			filtered := false
			if len(c.Args) > 0 {
				if c.Args[0] == "clear" {
					core.ClearEventRing()
					return
				}
				op, ok := protocol.ParseOpcode(strings.ToUpper(c.Args[0]))
				if !ok {
					c.Err(fmt.Errorf("unknown opcode %q", c.Args[0]))
					return
				}
				filter, filtered = op, true
			}
			for _, evt := range core.Events() {
				if filtered && (evt.Type != core.EvtCommand || protocol.Opcode(evt.Value1) != filter) {
					continue
				}
				c.Println(core.FormatEvent(evt))
			}
		},
	},
}
