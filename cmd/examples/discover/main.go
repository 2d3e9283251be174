// discover broadcasts a Who-Is across an interface, waits for I-Am
// responses, then reads each discovered device's object list and a
// couple of identifying properties off every object in it.
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
	"github.com/greenridge/bacstack/internal/concurrency"
	"github.com/greenridge/bacstack/objects"
	"github.com/greenridge/bacstack/tag"
	"github.com/greenridge/bacstack/transport/bacip"
)

// maxConcurrentDevicePolls bounds how many discovered devices this
// program reads from at once.
const maxConcurrentDevicePolls = 8

// objectReport is one object's reported identity and value, collected
// by a concurrency.Pool task polling a single discovered device.
type objectReport struct {
	obj   tag.ObjectID
	name  string
	value string
	err   error
}

// deviceReport collects one discovered device's polled object list,
// built concurrently with every other device's report.
type deviceReport struct {
	instance uint32
	address  string
	objects  []objectReport
	listErr  error
}

func main() {
	var (
		ifaceName string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Broadcast Who-Is and read back every discovered device's object list",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(ifaceName, timeout)
		},
	}
	cmd.Flags().StringVar(&ifaceName, "interface", "", "network interface to broadcast on")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Who-Is collection window and per-request timeout")
	_ = cmd.MarkFlagRequired("interface")

	if err := cmd.Execute(); err != nil {
		fmt.Println("error:", err)
	}
}

func run(ifaceName string, timeout time.Duration) error {
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
	if err := c.WhoIs(0, tag.WildcardInstance); err != nil {
		return fmt.Errorf("who-is: %w", err)
	}
	time.Sleep(timeout)

	instances := cache.Instances()
	if len(instances) == 0 {
		fmt.Println("No devices found.")
		return nil
	}

	fmt.Printf("Discovered %d device(s), polling concurrently:\n", len(instances))
	reports := make([]deviceReport, len(instances))
	pool := concurrency.New(context.Background(), maxConcurrentDevicePolls)
	for i, instance := range instances {
		i, instance := i, instance
		pool.Go(func(ctx context.Context) error {
			reports[i] = pollDevice(ctx, c, cache, instance, timeout)
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		fmt.Printf("polling error: %v\n", err)
	}

	for _, r := range reports {
		fmt.Printf("----------------------------------------\n")
		fmt.Printf("Device ID: %d\n", r.instance)
		fmt.Printf("Address: %s\n", r.address)
		if r.listErr != nil {
			fmt.Printf("  failed to read object list: %v\n", r.listErr)
			continue
		}
		fmt.Printf("  Found %d object(s):\n", len(r.objects))
		for _, obj := range r.objects {
			fmt.Printf("    - Object %d:%d\n", obj.obj.Type, obj.obj.Instance)
			if obj.err != nil {
				fmt.Printf("      failed to read name: %v\n", obj.err)
				continue
			}
			fmt.Printf("      Object_Name: %s\n", obj.name)
			if obj.value != "" {
				fmt.Printf("      Present_Value: %s\n", obj.value)
			}
		}
	}
	fmt.Printf("----------------------------------------\n")
	return nil
}

// pollDevice reads instance's object list and each object's name and
// present value, the per-device unit of work a concurrency.Pool task
// runs so multiple devices are polled in parallel instead of one
// request-response round trip at a time.
func pollDevice(ctx context.Context, c *client.Client, cache *addrcache.Cache, instance uint32, timeout time.Duration) deviceReport {
	binding, _ := cache.Lookup(instance)
	report := deviceReport{instance: instance, address: binding.Address.String()}

	deviceObj := tag.ObjectID{Type: uint16(objects.TypeDevice), Instance: instance}
	listCtx, cancel := context.WithTimeout(ctx, timeout)
	objectList, err := c.ReadProperty(listCtx, binding.Address, deviceObj, objects.PropObjectList, 0, false)
	cancel()
	if err != nil {
		report.listErr = err
		return report
	}

	for _, ov := range objectList {
		if ov.Kind != tag.KindObjectIdentifier {
			continue
		}
		obj := ov.Object
		or := objectReport{obj: obj}

		nameCtx, cancel := context.WithTimeout(ctx, timeout)
		name, err := c.ReadProperty(nameCtx, binding.Address, obj, objects.PropObjectName, 0, false)
		cancel()
		if err != nil {
			or.err = err
			report.objects = append(report.objects, or)
			continue
		}
		or.name = format.Values(name)

		pvCtx, cancel := context.WithTimeout(ctx, timeout)
		pv, err := c.ReadProperty(pvCtx, binding.Address, obj, objects.PropPresentValue, 0, false)
		cancel()
		if err == nil {
			or.value = format.Values(pv)
		}
		report.objects = append(report.objects, or)
	}
	return report
}
