package bridge

import "github.com/wingbridge/corepipeline/internal/constants"

// Device1Role is Device1's closed set of roles.
type Device1Role int

const (
	Device1UART1 Device1Role = iota // transparent bridge
	Device1SBUSIn
)

// Device2Role is Device2's closed set of roles.
type Device2Role int

const (
	Device2Disabled Device2Role = iota
	Device2USB
	Device2UART2
	Device2SBUSIn
	Device2SBUSOut
)

// Device3Role is Device3's closed set of roles.
type Device3Role int

const (
	Device3Disabled Device3Role = iota
	Device3UART3Mirror
	Device3UART3Bridge
	Device3UART3Log
	Device3SBUSOut
)

// Device4Role is Device4's closed set of roles.
type Device4Role int

const (
	Device4Disabled Device4Role = iota
	Device4NetworkBridge
	Device4LogNetwork
	Device4SBUSUDPTx
	Device4SBUSUDPRx
)

// ProtocolOptimization selects how Telemetry-class flows parse their bytes.
type ProtocolOptimization int

const (
	ProtocolNone ProtocolOptimization = iota // RAW
	ProtocolMAVLink
	ProtocolSBUS
)

// Config enumerates the role of each device plus global flags. It is built
// once by an external collaborator (the config store, out of scope here)
// and frozen before BuildFlows runs; reconfiguration requires a reboot.
type Config struct {
	Device1 Device1Role
	Device2 Device2Role
	Device3 Device3Role
	Device4 Device4Role

	Protocol ProtocolOptimization

	MAVLinkRouting     bool
	UDPBatchingEnabled bool

	// SBUSFailsafeMode selects Manual (pinned source) vs Auto (highest
	// priority live source) arbitration for the SBUS router.
	SBUSFailsafeMode SBUSArbitrationMode

	// UDPRemoteHost/UDPRemotePort is where the UDP sender transmits
	// telemetry; UDPListenPort is where the UDP transport listens for
	// incoming datagrams (defaults to the same MAVLink/GCS convention port).
	UDPRemoteHost string
	UDPRemotePort int
	UDPListenPort int

	// Sizing overrides; zero means use the package default.
	SenderQueueDepth int
	SenderQueueBytes int
	RawChunkSize     int
	UART1TxRingSize  int

	// CPUAffinity, when non-negative, pins the orchestrator goroutine to
	// that CPU via runtime.LockOSThread + unix.SchedSetaffinity. -1 skips
	// pinning (e.g. when running on a platform where sched_setaffinity
	// doesn't apply, or inside a container without CAP_SYS_NICE).
	CPUAffinity int
}

// SBUSArbitrationMode selects the SBUS router's source-selection policy.
type SBUSArbitrationMode int

const (
	SBUSAuto SBUSArbitrationMode = iota
	SBUSManual
)

// DefaultConfig returns a plain transparent-bridge configuration: Device1
// as a raw UART1 bridge, everything else disabled, RAW protocol, no
// MAVLink routing, default sizing, no CPU pinning.
func DefaultConfig() Config {
	return Config{
		Device1:          Device1UART1,
		Device2:          Device2Disabled,
		Device3:          Device3Disabled,
		Device4:          Device4Disabled,
		Protocol:         ProtocolNone,
		SBUSFailsafeMode: SBUSAuto,
		UDPRemotePort:    constants.DefaultUDPPort,
		UDPListenPort:    constants.DefaultUDPPort,
		SenderQueueDepth: constants.DefaultSenderQueueDepth,
		SenderQueueBytes: constants.DefaultSenderQueueBytes,
		RawChunkSize:     constants.DefaultRawChunkSize,
		UART1TxRingSize:  constants.DefaultUART1TxRingSize,
		CPUAffinity:      -1,
	}
}

func (c Config) senderQueueDepth() int {
	if c.SenderQueueDepth > 0 {
		return c.SenderQueueDepth
	}
	return constants.DefaultSenderQueueDepth
}

func (c Config) senderQueueBytes() int {
	if c.SenderQueueBytes > 0 {
		return c.SenderQueueBytes
	}
	return constants.DefaultSenderQueueBytes
}

func (c Config) rawChunkSize() int {
	if c.RawChunkSize > 0 {
		return c.RawChunkSize
	}
	return constants.DefaultRawChunkSize
}

func (c Config) uart1TxRingSize() int {
	if c.UART1TxRingSize > 0 {
		return c.UART1TxRingSize
	}
	return constants.DefaultUART1TxRingSize
}
