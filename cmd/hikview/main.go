// Command hikview is a forensic reader for Hikvision DVR disk images: it
// locates the Master Sector, walks the HIKBTREE index, decodes the system
// log stream, and carves a single recorded data block to H.264.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
