// readspecific broadcasts a Who-Is, finds one device by instance, then
// reads a caller-chosen (object-type, instance, property) triple off
// it with ReadPropertyMultiple.
package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/greenridge/bacstack/addrcache"
	"github.com/greenridge/bacstack/client"
	"github.com/greenridge/bacstack/cmd/examples/internal/format"
	"github.com/greenridge/bacstack/cmd/examples/internal/ifaceutil"
	examplelink "github.com/greenridge/bacstack/cmd/examples/internal/link"
	"github.com/greenridge/bacstack/encoding"
	"github.com/greenridge/bacstack/objects"
	"github.com/greenridge/bacstack/tag"
	"github.com/greenridge/bacstack/transport/bacip"
)

func main() {
	var (
		ifaceName      string
		deviceInstance uint32
		objectType     uint16
		objectInstance uint32
		propertyID     uint32
		timeout        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "readspecific",
		Short: "Read specific properties off one object on one device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(ifaceName, deviceInstance, objectType, objectInstance, propertyID, timeout)
		},
	}
	cmd.Flags().StringVar(&ifaceName, "interface", "", "network interface to broadcast on")
	cmd.Flags().Uint32Var(&deviceInstance, "device", 0, "target device instance")
	cmd.Flags().Uint16Var(&objectType, "object-type", 0, "BACnet object type (clause 12.1 enumeration)")
	cmd.Flags().Uint32Var(&objectInstance, "object-instance", 0, "object instance number")
	cmd.Flags().Uint32Var(&propertyID, "property", objects.PropPresentValue, "property identifier")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "per-request timeout")
	_ = cmd.MarkFlagRequired("interface")
	_ = cmd.MarkFlagRequired("device")

	if err := cmd.Execute(); err != nil {
		fmt.Println("error:", err)
	}
}

func run(ifaceName string, deviceInstance uint32, objectType uint16, objectInstance, propertyID uint32, timeout time.Duration) error {
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

	fmt.Println("Performing Who-Is broadcast...")
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
	spec := encoding.ReadAccessSpecification{
		Object: obj,
		References: []encoding.PropertyReference{
			{PropertyID: objects.PropObjectName},
			{PropertyID: propertyID},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	results, err := c.ReadPropertyMultiple(ctx, binding.Address, []encoding.ReadAccessSpecification{spec})
	if err != nil {
		return fmt.Errorf("read-property-multiple: %w", err)
	}

	fmt.Printf("Properties for object %d:%d:\n", obj.Type, obj.Instance)
	for _, pv := range results {
		fmt.Printf("  %d: %s\n", pv.Reference.PropertyID, format.Values(pv.Values))
	}
	return nil
}
