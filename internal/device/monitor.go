package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// Event reports a USB serial device appearing or disappearing. Device
// is populated for add events only; remove events carry just the node
// path, the attributes are already gone from sysfs by then.
type Event struct {
	Action  string
	DevPath string
	Device  Device
}

// Monitor streams add/remove events for USB serial nodes until ctx is
// cancelled. The returned channel is closed on shutdown. When the
// underlying netlink channel fails the monitor reconnects with a
// one-second backoff.
func (s *Scanner) Monitor(ctx context.Context, wg *sync.WaitGroup) (<-chan Event, error) {
	mon := s.udev.NewMonitorFromNetlink("udev")
	devChan, errChan, err := mon.DeviceChan(ctx)
	if err != nil {
		return nil, fmt.Errorf("udev monitor channel: %w", err)
	}

	events := make(chan Event)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(events)

		for {
			select {
			case dev, ok := <-devChan:
				if !ok {
					return
				}
				if dev == nil {
					continue
				}
				node := dev.Devnode()
				if dev.Subsystem() != TTYSubsystem || node == "" || !s.isSerialNode(node) {
					continue
				}
				klog.V(5).Infof("Received device event (%s): %s", dev.Action(), dev.Syspath())

				ev := Event{Action: dev.Action(), DevPath: node}
				switch ev.Action {
				case ActionAdd:
					ev.Device = s.extract(dev)
				case ActionRemove:
				default:
					continue
				}

				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			case err, ok := <-errChan:
				if !ok {
					return
				}
				klog.Errorf("Error from udev monitor, will try to retry connecting to udev: %v", err)
				for {
					mon = s.udev.NewMonitorFromNetlink("udev")
					devChan, errChan, err = mon.DeviceChan(ctx)
					if err == nil {
						klog.Infof("Successfully reconnected to udev")
						break
					}
					klog.Errorf("Failed to create device channel, retrying: %v", err)
					select {
					case <-ctx.Done():
						return
					case <-time.After(1 * time.Second):
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
