// hap-controller pairs with and manages HAP accessories.
//
// Usage:
//
//	hap-controller [options] <command> [arguments]
//
// Commands:
//
//	pair <addr> <setup-code>   Pair with the accessory at addr
//	identify <device-id>       Ask a paired accessory to identify itself
//	list <device-id>           List the pairings stored on an accessory
//	unpair <device-id>         Remove this controller from an accessory
//	accessories                List paired accessories
//
// Options:
//
//	-state    Path of the controller state file (default: hap-controller.json)
//	-timeout  Operation timeout (default: 30s)
//
// Example:
//
//	hap-controller pair 192.168.1.20:32000 111-22-333
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/backkem/hap/examples/controller"
)

func main() {
	statePath := flag.String("state", controller.DefaultStatePath, "Path of the controller state file")
	timeout := flag.Duration("timeout", 30*time.Second, "Operation timeout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options] pair|identify|list|unpair|accessories [arguments]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctrl, err := controller.New(controller.Options{StatePath: *statePath})
	if err != nil {
		log.Fatalf("Failed to load controller: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, ctrl, args); err != nil {
		log.Fatalf("%s failed: %v", args[0], err)
	}
}

func run(ctx context.Context, ctrl *controller.Controller, args []string) error {
	need := func(n int) error {
		if len(args) != n+1 {
			return fmt.Errorf("%s takes %d arguments", args[0], n)
		}
		return nil
	}

	switch args[0] {
	case "pair":
		if err := need(2); err != nil {
			return err
		}
		id, err := ctrl.Pair(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Printf("Paired with %s as %s\n", id, ctrl.PairingID())

	case "identify":
		if err := need(1); err != nil {
			return err
		}
		return ctrl.Identify(ctx, args[1])

	case "list":
		if err := need(1); err != nil {
			return err
		}
		pairings, err := ctrl.ListPairings(ctx, args[1])
		if err != nil {
			return err
		}
		for _, p := range pairings {
			fmt.Printf("%s  %s\n", p.Identifier, p.Permissions)
		}

	case "unpair":
		if err := need(1); err != nil {
			return err
		}
		return ctrl.Unpair(ctx, args[1])

	case "accessories":
		for _, a := range ctrl.Accessories() {
			fmt.Printf("%s  %s\n", a.DeviceID, a.Addr)
		}

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}
