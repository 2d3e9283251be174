// serve runs a minimal BACnet/IP device: one Analog Input exposing a
// present value that drifts over time, plus one Analog Output, Lighting
// Output, Schedule and Load Control, answering Who-Is/ReadProperty/
// WriteProperty/ReadPropertyMultiple and ticking its object population
// on a fixed interval. It has no analogue in the client-only origin
// of this stack — a device to point the other examples at.
package main

import (
	"context"
	"fmt"
	"math"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/greenridge/bacstack/cmd/examples/internal/ifaceutil"
	"github.com/greenridge/bacstack/device"
	"github.com/greenridge/bacstack/encoding"
	"github.com/greenridge/bacstack/internal/config"
	"github.com/greenridge/bacstack/internal/logging"
	"github.com/greenridge/bacstack/objects"
	"github.com/greenridge/bacstack/objects/schedule"
	"github.com/greenridge/bacstack/tag"
	"github.com/greenridge/bacstack/transport"
	"github.com/greenridge/bacstack/transport/bacip"
)

// inboundDatagram is one NPDU handed from the socket-reading goroutine
// to the single-threaded device loop.
type inboundDatagram struct {
	peer transport.Address
	npdu []byte
}

// chanReceiver adapts transport.Receiver to a channel so the socket
// read loop (bacip.Link.Serve) never touches device.Device state
// directly — only the select loop in run does, keeping the device
// single-threaded.
type chanReceiver chan<- inboundDatagram

func (c chanReceiver) Receive(peer transport.Address, npdu []byte) {
	c <- inboundDatagram{peer: peer, npdu: append([]byte(nil), npdu...)}
}

func main() {
	var (
		ifaceName  string
		configPath string
		tickEvery  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a single-device BACnet/IP responder with one drifting Analog Input",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(ifaceName, configPath, tickEvery)
		},
	}
	cmd.Flags().StringVar(&ifaceName, "interface", "", "network interface to listen on")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a device configuration file (optional)")
	cmd.Flags().DurationVar(&tickEvery, "tick", time.Second, "device tick interval")
	_ = cmd.MarkFlagRequired("interface")

	if err := cmd.Execute(); err != nil {
		fmt.Println("error:", err)
	}
}

func run(ifaceName, configPath string, tickEvery time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(logging.Options{Level: "info", DeviceTag: cfg.DeviceName})

	local, broadcast, err := ifaceutil.Resolve(ifaceName)
	if err != nil {
		return err
	}
	link, err := bacip.Listen(
		&net.UDPAddr{IP: local, Port: bacip.DefaultPort},
		&net.UDPAddr{IP: broadcast, Port: bacip.DefaultPort},
	)
	if err != nil {
		return fmt.Errorf("open link: %w", err)
	}
	defer link.Close()

	deviceObjID := tag.ObjectID{Type: uint16(objects.TypeDevice), Instance: cfg.DeviceInstance}
	d := device.New(deviceObjID, cfg.DeviceName)
	d.Object.VendorName = cfg.VendorName
	d.Object.VendorIdentifier = uint32(cfg.VendorID)
	d.Object.ModelName = cfg.ModelName
	d.Object.MaxAPDULengthAccepted = cfg.MaxAPDULength
	d.Object.SegmentationSupported = uint32(cfg.SegmentationSupported)
	d.Object.APDUTimeoutMs = uint32(cfg.APDUTimeout.Milliseconds())
	d.Object.NumberOfAPDURetries = uint32(cfg.APDURetries)
	d.Object.ProtocolRevision = uint32(cfg.ProtocolRevision)

	ai := &objects.AnalogInput{
		Common: objects.Common{
			ID:   tag.ObjectID{Type: uint16(objects.TypeAnalogInput), Instance: 1},
			Type: objects.TypeAnalogInput,
			Name: "outside-air-temperature",
		},
		Units:        62, // degrees-fahrenheit
		COVIncrement: 0.5,
	}
	if err := d.Registry.Add(ai); err != nil {
		return fmt.Errorf("register analog input: %w", err)
	}

	fanSpeed := objects.NewAnalogOutput(
		tag.ObjectID{Type: uint16(objects.TypeAnalogOutput), Instance: 1}, "fan-speed-command", 0)
	if err := d.Registry.Add(fanSpeed); err != nil {
		return fmt.Errorf("register analog output: %w", err)
	}

	lobbyDimmer := objects.NewLightingOutput(
		tag.ObjectID{Type: uint16(objects.TypeLightingOutput), Instance: 1}, "lobby-dimmer", 0)
	if err := d.Registry.Add(lobbyDimmer); err != nil {
		return fmt.Errorf("register lighting output: %w", err)
	}
	d.RegisterLighting(lobbyDimmer.Identifier(), lobbyDimmer.Engine)

	occupancy := objects.NewSchedule(
		tag.ObjectID{Type: uint16(objects.TypeSchedule), Instance: 1}, "occupancy-schedule",
		&schedule.Schedule{Weekly: weekdayOccupancySchedule(), Default: tag.Enumerated(0)})
	if err := d.Registry.Add(occupancy); err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}
	d.RegisterSchedule(occupancy.Identifier(), occupancy)

	fanShed := objects.NewLoadControl(
		tag.ObjectID{Type: uint16(objects.TypeLoadControl), Instance: 1}, "fan-shed", fanSpeed, 100, nil)
	fanShed.SetClock(d.ClockMs)
	if err := d.Registry.Add(fanShed); err != nil {
		return fmt.Errorf("register load control: %w", err)
	}
	d.RegisterLoadControl(fanShed.Identifier(), fanShed.Engine)

	d.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inbound := make(chan inboundDatagram, 64)
	go func() {
		if err := link.Serve(chanReceiver(inbound)); err != nil {
			log.EventErr("link closed", err, nil)
		}
	}()

	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()
	last := time.Now()

	log.Event("device serving", logging.Fields{"instance": cfg.DeviceInstance, "interface": ifaceName})

	for {
		select {
		case <-ctx.Done():
			log.Event("shutting down", nil)
			return nil

		case dg := <-inbound:
			handleInbound(d, link, log, dg)

		case now := <-ticker.C:
			elapsedMs := uint16(now.Sub(last).Milliseconds())
			last = now
			ai.PresentValue = drift(now)
			for _, out := range d.Tick(elapsedMs) {
				sendNPDU(link, log, out.Peer, out.APDU)
			}
		}
	}
}

func handleInbound(d *device.Device, link *bacip.Link, log *logging.Logger, dg inboundDatagram) {
	n, err := transport.Decode(dg.npdu)
	if err != nil {
		log.EventErr("dropping malformed npdu", err, logging.Fields{"peer": dg.peer.String()})
		return
	}
	if n.NetworkMessage || len(n.APDU) == 0 {
		return
	}

	reply, err := d.Receive(dg.peer, n.APDU)
	if err != nil {
		log.EventErr("request handling failed", err, logging.Fields{"peer": dg.peer.String()})
		return
	}
	if reply != nil {
		sendNPDU(link, log, dg.peer, reply)
	}
}

func sendNPDU(link *bacip.Link, log *logging.Logger, peer transport.Address, apduBytes []byte) {
	n := transport.NPDU{Version: 1}
	nl := transport.Encode(nil, n, apduBytes)
	buf := make([]byte, nl)
	transport.Encode(buf, n, apduBytes)
	if err := link.Send(peer, buf); err != nil {
		log.EventErr("failed to send", err, logging.Fields{"peer": peer.String()})
	}
}

func drift(t time.Time) float32 {
	return float32(68 + 4*math.Sin(float64(t.Unix())/60))
}

// weekdayOccupancySchedule builds a Monday-Friday 07:00-18:00 occupied
// schedule for the occupancy-schedule example Schedule object.
func weekdayOccupancySchedule() encoding.WeeklySchedule {
	workday := encoding.DailySchedule{
		{Time: tag.Time{Hour: 7}, Value: tag.Enumerated(1)},
		{Time: tag.Time{Hour: 18}, Value: tag.Enumerated(0)},
	}
	var w encoding.WeeklySchedule
	for i := 0; i < 5; i++ {
		w[i] = workday
	}
	return w
}
