package bridge

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wingbridge/corepipeline/internal/constants"
	"github.com/wingbridge/corepipeline/internal/interfaces"
	"github.com/wingbridge/corepipeline/internal/mavrouter"
	"github.com/wingbridge/corepipeline/internal/sbusrouter"
	"github.com/wingbridge/corepipeline/internal/sender"
	"github.com/wingbridge/corepipeline/internal/spsc"
	"github.com/wingbridge/corepipeline/internal/txring"
)

// Pipeline is the two-phase orchestrator: processInputFlows,
// processTelemetryFlow, processSenders, run to completion each pass on one
// pinned core.
type Pipeline struct {
	cfg            Config
	flows          []DataFlow
	senders        [constants.MaxSenders]sender.Sender
	uart1TX        *txring.Ring
	uart1Transport interfaces.Transport

	router   *mavrouter.Router
	sbusR    *sbusrouter.Router
	metrics  *Metrics
	observer interfaces.Observer
	logger   interfaces.Logger

	cancel context.CancelFunc
	stop   chan struct{}
	done   chan struct{}
}

// NewPipeline validates cfg, builds the immutable flow array, and wires
// every sender slot. It does not start the orchestrator goroutine; call
// Run for that.
func NewPipeline(cfg Config, tr Transports, logger interfaces.Logger) (*Pipeline, error) {
	if cfg.Device1 == Device1SBUSIn && tr.UART1 == nil {
		return nil, NewError("NewPipeline", "config", ErrCodeConfigImpossible, "Device1=SBUS_IN requires a UART1 transport")
	}

	metrics := NewMetrics()
	observer := NewObserver(metrics)
	router := mavrouter.New()
	sbusR := sbusrouter.Instance()

	p := &Pipeline{
		cfg:      cfg,
		router:   router,
		sbusR:    sbusR,
		metrics:  metrics,
		observer: observer,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	p.flows = BuildFlows(cfg, tr, router, logger)
	RegisterSBUSSinks(cfg, tr, sbusR)
	p.wireSenders(cfg, tr)

	return p, nil
}

func (p *Pipeline) wireSenders(cfg Config, tr Transports) {
	disableUART1TX := cfg.Device1 == Device1SBUSIn
	p.uart1TX = txring.New(cfg.uart1TxRingSize(), disableUART1TX)
	p.uart1Transport = tr.UART1
	p.senders[constants.IdxUART1] = sender.NewUART1Sender(p.uart1TX, p.observer)

	queueDepth, queueBytes := cfg.senderQueueDepth(), cfg.senderQueueBytes()

	if tr.USB != nil {
		p.senders[constants.IdxUSB] = sender.NewUSBSender(tr.USB, queueDepth, queueBytes, p.observer, p.logger)
	}
	if tr.UART2 != nil {
		p.senders[constants.IdxUART2] = sender.NewUARTSender("UART2", tr.UART2, queueDepth, queueBytes, p.observer, p.logger)
	}
	if tr.UART3 != nil {
		p.senders[constants.IdxUART3] = sender.NewUARTSender("UART3", tr.UART3, queueDepth, queueBytes, p.observer, p.logger)
	}
	if tr.UDP != nil {
		ring := spsc.New()
		p.senders[constants.IdxUDP] = sender.NewUDPSender(ring, cfg.UDPBatchingEnabled, queueDepth, queueBytes, p.observer, p.logger)
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		go sender.NewUDPTransmitter(ring, tr.UDP, p.observer).Run(ctx)
	}
}

// Metrics returns the pipeline's metrics instance, normally handed to
// internal/statsapi.
func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// Run pins the orchestrator to cfg.CPUAffinity (when non-negative) and
// loops processInputFlows/processTelemetryFlow/processSenders until Stop
// is called.
func (p *Pipeline) Run() {
	defer close(p.done)
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if p.cfg.CPUAffinity >= 0 {
		var mask unix.CPUSet
		mask.Set(p.cfg.CPUAffinity)
		if err := unix.SchedSetaffinity(0, &mask); err != nil && p.logger != nil {
			p.logger.Warnf("pipeline: failed to pin orchestrator to CPU %d: %v", p.cfg.CPUAffinity, err)
		}
	}

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.runOnce()
		}
	}
}

// Stop signals the orchestrator to exit and blocks until it does.
func (p *Pipeline) Stop() {
	close(p.stop)
	<-p.done
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Pipeline) runOnce() {
	now := time.Now()
	p.processInputFlows(now)
	p.processTelemetryFlow(now)
	p.sbusR.Tick(now)
	bulk := p.anyBurstActive()
	p.processSenders(bulk)
	if p.uart1Transport != nil {
		p.uart1TX.ProcessTxQueue(p.uart1Transport)
	}
}

func (p *Pipeline) anyBurstActive() bool {
	for i := range p.flows {
		if p.flows[i].Parser != nil && p.flows[i].Parser.IsBurstActive() {
			return true
		}
	}
	return false
}

// processInputFlows runs the GCS->FC side: one parse/route/distribute pass
// per input flow, bounded to constants.InputFlowBudget total.
func (p *Pipeline) processInputFlows(now time.Time) {
	deadline := now.Add(constants.InputFlowBudget)
	for i := range p.flows {
		if !p.flows[i].IsInputFlow {
			continue
		}
		if time.Now().After(deadline) {
			return
		}
		p.pumpFlow(&p.flows[i], now.UnixMilli())
	}
}

// processTelemetryFlow runs the FC->GCS side: packet-oriented parsers
// (MAVLink, SBUS) drain exhaustively; RAW parsers take one pass; LOGS flows
// run once after telemetry.
func (p *Pipeline) processTelemetryFlow(now time.Time) {
	deadline := now.Add(constants.TelemetryFlowBudget)
	for i := range p.flows {
		f := &p.flows[i]
		if f.IsInputFlow || f.Source != SourceTelemetry {
			continue
		}
		if f.Parser.Name() == "RAW" {
			p.pumpFlow(f, now.UnixMilli())
			continue
		}
		for iter := 0; iter < constants.TelemetryMaxIterations; iter++ {
			if time.Now().After(deadline) {
				break
			}
			consumed := p.pumpFlow(f, now.UnixMilli())
			if consumed == 0 {
				break
			}
		}
	}
	for i := range p.flows {
		f := &p.flows[i]
		if !f.IsInputFlow && f.Source == SourceLogs {
			p.pumpFlow(f, now.UnixMilli())
		}
	}
}

// fillIngress reads whatever bytes the flow's transport currently has
// available and writes them into its ring buffer, ahead of the parser
// pass. Flows fed by something other than a physical transport (the
// Logger flow, whose ring is filled by the logging subsystem) carry a
// nil Transport and are left untouched.
func (p *Pipeline) fillIngress(f *DataFlow) {
	if f.Transport == nil || f.Ingress == nil {
		return
	}
	free := f.Ingress.FreeSpace()
	if free == 0 {
		return
	}
	buf := make([]byte, free)
	n, err := f.Transport.Read(buf)
	if n <= 0 || err != nil {
		return
	}
	written := f.Ingress.Write(buf[:n])
	p.observer.ObserveRXBytes(f.PhysicalInterface, uint64(written))
}

// pumpFlow fills the flow's ring from its transport, runs one parser pass
// (fast path first), and distributes every packet it produces, returning
// bytes consumed so callers can detect no-progress.
func (p *Pipeline) pumpFlow(f *DataFlow, nowMs int64) int {
	p.fillIngress(f)
	if f.Parser.TryFastProcess(nowMs) {
		return 1
	}
	packets, consumed := f.Parser.Parse(nowMs)
	for _, pkt := range packets {
		pkt.PhysicalInterface = f.PhysicalInterface
		if f.UsesRouter && pkt.Format == FormatMAVLink {
			if idx, ok := senderIdxForPhys(pkt.PhysicalInterface); ok {
				p.router.Learn(pkt.SysID, idx, time.Now())
			}
			hints := p.router.Resolve(pkt.HasTarget, pkt.TargetSysID, f.SenderMask, time.Now())
			pkt.Hints = hints
			p.observer.ObserveRouterDecision(hints.HasExplicitTarget)
		}
		p.observer.ObservePacketParsed(f.Parser.Name(), len(pkt.Payload))
		distribute(f, pkt, p.senders)
	}
	return consumed
}

// processSenders drains every non-null sender slot once per pass. A UART2
// or UART3 slot wired for an SBUS_OUT role still holds a queued sender, but
// its queue stays empty because the SBUS router writes that transport
// directly, so nothing needs to be skipped here beyond the normal nil check.
func (p *Pipeline) processSenders(bulkMode bool) {
	for _, s := range p.senders {
		if s == nil {
			continue
		}
		s.ProcessSendQueue(bulkMode)
	}
}
