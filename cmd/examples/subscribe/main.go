// subscribe finds a device by instance, subscribes to change-of-value
// notifications on one of its objects, and prints every notification
// as it arrives until interrupted.
package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/greenridge/bacstack/addrcache"
	"github.com/greenridge/bacstack/client"
	"github.com/greenridge/bacstack/cmd/examples/internal/format"
	"github.com/greenridge/bacstack/cmd/examples/internal/ifaceutil"
	examplelink "github.com/greenridge/bacstack/cmd/examples/internal/link"
	"github.com/greenridge/bacstack/tag"
	"github.com/greenridge/bacstack/transport/bacip"
)

func main() {
	var (
		ifaceName      string
		deviceInstance uint32
		objectType     uint16
		objectInstance uint32
		confirmed      bool
		lifetime       uint8
		timeout        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Subscribe to change-of-value notifications on one object",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(ifaceName, deviceInstance, objectType, objectInstance, confirmed, lifetime, timeout)
		},
	}
	cmd.Flags().StringVar(&ifaceName, "interface", "", "network interface to broadcast on")
	cmd.Flags().Uint32Var(&deviceInstance, "device", 0, "target device instance")
	cmd.Flags().Uint16Var(&objectType, "object-type", 0, "BACnet object type (clause 12.1 enumeration)")
	cmd.Flags().Uint32Var(&objectInstance, "object-instance", 0, "object instance number")
	cmd.Flags().BoolVar(&confirmed, "confirmed", false, "request confirmed COV notifications")
	cmd.Flags().Uint8Var(&lifetime, "lifetime", 60, "subscription lifetime in seconds (0 means indefinite)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-request timeout")
	_ = cmd.MarkFlagRequired("interface")
	_ = cmd.MarkFlagRequired("device")

	if err := cmd.Execute(); err != nil {
		fmt.Println("error:", err)
	}
}

func run(ifaceName string, deviceInstance uint32, objectType uint16, objectInstance uint32, confirmed bool, lifetime uint8, timeout time.Duration) error {
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

	c := client.New(link, timeout, 3)
	cache, err := addrcache.New(256)
	if err != nil {
		return err
	}
	c.AddressCache = cache
	go link.Serve(examplelink.Adapt(c))

	if err := c.WhoIs(deviceInstance, deviceInstance); err != nil {
		return fmt.Errorf("who-is: %w", err)
	}
	time.Sleep(timeout)

	binding, ok := cache.Lookup(deviceInstance)
	if !ok {
		return fmt.Errorf("device %d did not respond to Who-Is", deviceInstance)
	}
	fmt.Printf("Found device %d at %s\n", deviceInstance, binding.Address)

	obj := tag.ObjectID{Type: objectType, Instance: objectInstance}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifications, errs := c.SubscribeCOV(ctx, binding.Address, obj, 1, confirmed, lifetime)
	fmt.Println("Subscribed to COV notifications. Waiting for updates (Ctrl-C to stop)...")

	for {
		select {
		case n, ok := <-notifications:
			if !ok {
				fmt.Println("COV channel closed. Exiting.")
				return nil
			}
			fmt.Printf("Received COV Notification:\n")
			fmt.Printf("  Initiating Device: %d:%d\n", n.InitiatingDevice.Type, n.InitiatingDevice.Instance)
			fmt.Printf("  Monitored Object: %d:%d\n", n.MonitoredObject.Type, n.MonitoredObject.Instance)
			fmt.Printf("  Time Remaining: %d seconds\n", n.TimeRemaining)
			for _, pv := range n.Values {
				fmt.Printf("    %d: %s\n", pv.Reference.PropertyID, format.Values(pv.Values))
			}
			fmt.Println("--------------------")
		case err, ok := <-errs:
			if !ok {
				fmt.Println("Error channel closed. Exiting.")
				return nil
			}
			return fmt.Errorf("subscription error: %w", err)
		case <-ctx.Done():
			fmt.Println("Interrupted. Exiting.")
			return nil
		}
	}
}
