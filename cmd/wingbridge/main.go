package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	bridge "github.com/wingbridge/corepipeline"
	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/logging"
	"github.com/wingbridge/corepipeline/internal/statsapi"
	"github.com/wingbridge/corepipeline/internal/transport"
	"github.com/wingbridge/corepipeline/internal/transport/serial"
	"github.com/wingbridge/corepipeline/internal/transport/usbcdc"
)

func main() {
	var (
		uart1Path  = flag.String("uart1", "/dev/ttyUSB0", "UART1 device path (Device1: flight-controller link)")
		uart1Baud  = flag.Uint("uart1-baud", 115200, "UART1 baud rate")
		uart2Path  = flag.String("uart2", "", "UART2 device path (Device2, if role needs it)")
		uart2Baud  = flag.Uint("uart2-baud", 57600, "UART2 baud rate")
		uart3Path  = flag.String("uart3", "", "UART3 device path (Device3, if role needs it)")
		uart3Baud  = flag.Uint("uart3-baud", 57600, "UART3 baud rate")
		usbVendor  = flag.Uint("usb-vendor", 0, "USB CDC vendor ID (Device2=USB)")
		usbProduct = flag.Uint("usb-product", 0, "USB CDC product ID (Device2=USB)")
		udpListen  = flag.Int("udp-listen", 14550, "UDP listen port (Device4 network roles)")
		udpRemote  = flag.String("udp-remote", "", "UDP remote host (Device4 network roles)")
		udpPort    = flag.Int("udp-port", 14550, "UDP remote port")

		device1 = flag.String("device1", "uart1", "Device1 role: uart1, sbus_in")
		device2 = flag.String("device2", "disabled", "Device2 role: disabled, usb, uart2, sbus_in, sbus_out")
		device3 = flag.String("device3", "disabled", "Device3 role: disabled, uart3_mirror, uart3_bridge, uart3_log, sbus_out")
		device4 = flag.String("device4", "disabled", "Device4 role: disabled, network_bridge, log_network, sbus_udp_tx, sbus_udp_rx")

		protocol  = flag.String("protocol", "mavlink", "Telemetry protocol: none, mavlink, sbus")
		routing   = flag.Bool("mavlink-routing", true, "Enable MAVLink sysid-based unicast routing")
		batching  = flag.Bool("udp-batching", true, "Enable UDP send batching up to MTU/deadline")
		cpuAffinity = flag.Int("cpu-affinity", -1, "Pin orchestrator to this CPU (-1 disables)")
		statsAddr = flag.String("stats-addr", ":8088", "Address for the /stats and /healthz HTTP endpoints")
		verbose   = flag.Bool("v", false, "Verbose logging")

		senderQueueDepth = flag.Int("sender-queue-depth", 0, "Per-sender queue depth in packets (0 uses the package default)")
		senderQueueBytes = flag.Int("sender-queue-bytes", 0, "Per-sender queue size in bytes (0 uses the package default)")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg := bridge.DefaultConfig()
	cfg.CPUAffinity = *cpuAffinity
	cfg.MAVLinkRouting = *routing
	cfg.UDPBatchingEnabled = *batching
	cfg.UDPListenPort = *udpListen
	cfg.UDPRemoteHost = *udpRemote
	cfg.UDPRemotePort = *udpPort
	cfg.SenderQueueDepth = *senderQueueDepth
	cfg.SenderQueueBytes = *senderQueueBytes

	var err error
	if cfg.Device1, err = parseDevice1(*device1); err != nil {
		log.Fatalf("wingbridge: %v", err)
	}
	if cfg.Device2, err = parseDevice2(*device2); err != nil {
		log.Fatalf("wingbridge: %v", err)
	}
	if cfg.Device3, err = parseDevice3(*device3); err != nil {
		log.Fatalf("wingbridge: %v", err)
	}
	if cfg.Device4, err = parseDevice4(*device4); err != nil {
		log.Fatalf("wingbridge: %v", err)
	}
	if cfg.Protocol, err = parseProtocol(*protocol); err != nil {
		log.Fatalf("wingbridge: %v", err)
	}

	tr, closers := openTransports(cfg, logger,
		*uart1Path, uint32(*uart1Baud),
		*uart2Path, uint32(*uart2Baud),
		*uart3Path, uint32(*uart3Baud),
		uint16(*usbVendor), uint16(*usbProduct))
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	pipeline, err := bridge.NewPipeline(cfg, tr, logger)
	if err != nil {
		logger.Errorf("failed to construct pipeline: %v", err)
		os.Exit(1)
	}

	server := statsapi.New(pipeline.Metrics())
	go func() {
		if err := server.Run(*statsAddr); err != nil {
			logger.Warnf("stats server exited: %v", err)
		}
	}()

	go pipeline.Run()
	logger.Infof("wingbridge running: device1=%s device2=%s device3=%s device4=%s stats=%s",
		*device1, *device2, *device3, *device4, *statsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("received shutdown signal")
	pipeline.Stop()
}

func parseDevice1(s string) (bridge.Device1Role, error) {
	switch s {
	case "uart1":
		return bridge.Device1UART1, nil
	case "sbus_in":
		return bridge.Device1SBUSIn, nil
	}
	return 0, fmt.Errorf("unknown device1 role %q", s)
}

func parseDevice2(s string) (bridge.Device2Role, error) {
	switch s {
	case "disabled":
		return bridge.Device2Disabled, nil
	case "usb":
		return bridge.Device2USB, nil
	case "uart2":
		return bridge.Device2UART2, nil
	case "sbus_in":
		return bridge.Device2SBUSIn, nil
	case "sbus_out":
		return bridge.Device2SBUSOut, nil
	}
	return 0, fmt.Errorf("unknown device2 role %q", s)
}

func parseDevice3(s string) (bridge.Device3Role, error) {
	switch s {
	case "disabled":
		return bridge.Device3Disabled, nil
	case "uart3_mirror":
		return bridge.Device3UART3Mirror, nil
	case "uart3_bridge":
		return bridge.Device3UART3Bridge, nil
	case "uart3_log":
		return bridge.Device3UART3Log, nil
	case "sbus_out":
		return bridge.Device3SBUSOut, nil
	}
	return 0, fmt.Errorf("unknown device3 role %q", s)
}

func parseDevice4(s string) (bridge.Device4Role, error) {
	switch s {
	case "disabled":
		return bridge.Device4Disabled, nil
	case "network_bridge":
		return bridge.Device4NetworkBridge, nil
	case "log_network":
		return bridge.Device4LogNetwork, nil
	case "sbus_udp_tx":
		return bridge.Device4SBUSUDPTx, nil
	case "sbus_udp_rx":
		return bridge.Device4SBUSUDPRx, nil
	}
	return 0, fmt.Errorf("unknown device4 role %q", s)
}

func parseProtocol(s string) (bridge.ProtocolOptimization, error) {
	switch s {
	case "none":
		return bridge.ProtocolNone, nil
	case "mavlink":
		return bridge.ProtocolMAVLink, nil
	case "sbus":
		return bridge.ProtocolSBUS, nil
	}
	return 0, fmt.Errorf("unknown protocol %q", s)
}

type closer interface{ Close() error }

// openTransports opens the physical transports for a configuration: UART1
// always, USB when Device2=USB, UDP when Device4 is not disabled, and
// UART2/UART3 whenever a device path was given for them, whatever the
// device roles are. Transports that are not opened are left nil;
// BuildFlows and wireSenders both already treat a nil transport as "this
// interface isn't wired." Every opened transport is also returned as a
// closer so the caller can tear them all down on shutdown.
func openTransports(cfg bridge.Config, logger *logging.Logger,
	uart1Path string, uart1Baud uint32,
	uart2Path string, uart2Baud uint32,
	uart3Path string, uart3Baud uint32,
	usbVendor, usbProduct uint16) (tr bridge.Transports, closers []closer) {

	if port, err := serial.Open(uart1Path, uart1Baud, constants.RawForceFlushGap); err != nil {
		logger.Errorf("failed to open UART1 %s: %v", uart1Path, err)
	} else {
		tr.UART1 = port
		closers = append(closers, port)
	}

	if cfg.Device2 == bridge.Device2USB {
		if dev, err := usbcdc.Open(usbVendor, usbProduct, 0x81, 0x01); err != nil {
			logger.Errorf("failed to open USB CDC device %04x:%04x: %v", usbVendor, usbProduct, err)
		} else {
			tr.USB = dev
			closers = append(closers, dev)
		}
	}

	if uart2Path != "" {
		if port, err := serial.Open(uart2Path, uart2Baud, constants.RawForceFlushGap); err != nil {
			logger.Errorf("failed to open UART2 %s: %v", uart2Path, err)
		} else {
			tr.UART2 = port
			closers = append(closers, port)
		}
	}

	if uart3Path != "" {
		if port, err := serial.Open(uart3Path, uart3Baud, constants.RawForceFlushGap); err != nil {
			logger.Errorf("failed to open UART3 %s: %v", uart3Path, err)
		} else {
			tr.UART3 = port
			closers = append(closers, port)
		}
	}

	if cfg.Device4 != bridge.Device4Disabled {
		if conn, err := transport.DialUDP(cfg.UDPListenPort, cfg.UDPRemoteHost, cfg.UDPRemotePort); err != nil {
			logger.Errorf("failed to open UDP socket on port %d: %v", cfg.UDPListenPort, err)
		} else {
			tr.UDP = conn
			closers = append(closers, conn)
		}
	}

	return tr, closers
}
