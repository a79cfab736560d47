// hap-accessory is a HAP lightbulb accessory example.
//
// The accessory can be paired with any HAP controller (or hap-controller)
// and answers identify requests over the encrypted session.
//
// Usage:
//
//	hap-accessory [options]
//
// Options:
//
//	-port      TCP port (default: 32000)
//	-pin       Setup code (default: 111-22-333)
//	-setup-id  4-character setup id for the setup URI (default: none)
//	-storage   Path for persistent storage (default: in-memory)
//	-keyring   Store the accessory identity in the OS keyring
//	-name      Accessory name (default: "Lightbulb")
//	-category  Accessory category (default: 5)
//
// Example:
//
//	hap-accessory -port 32000 -pin 111-22-333 -storage ./hap.json
package main

import (
	"log"

	"github.com/backkem/hap/examples/common"
	"github.com/backkem/hap/examples/lightbulb"
	"github.com/backkem/hap/pkg/discovery"
)

func main() {
	defaults := common.DefaultOptions()
	defaults.DeviceName = "Lightbulb"
	defaults.Category = discovery.CategoryLightbulb
	opts := common.ParseFlags(defaults)

	device, err := lightbulb.NewDevice(opts)
	if err != nil {
		log.Fatalf("Failed to create lightbulb: %v", err)
	}

	// Run the accessory (blocks until interrupted)
	if err := common.RunAccessory(device.Accessory, opts); err != nil {
		log.Fatalf("Accessory error: %v", err)
	}
}
