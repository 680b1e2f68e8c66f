// ABOUTME: Version information for the streamer and simulator
// ABOUTME: Reported in app/hello device info and in logs
package version

// Version is the release version
const Version = "0.1.0"

// Product is the product name sent to head units
const Product = "Resonate Head Unit Streamer"

// Manufacturer is the manufacturer sent to head units
const Manufacturer = "Resonate"
