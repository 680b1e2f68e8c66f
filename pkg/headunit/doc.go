// ABOUTME: Simulated head unit receiving streamed media over websockets
// ABOUTME: Acknowledges services, drives HMI levels and plays received audio
// Package headunit implements a simulated head unit: the receiving end of
// pkg/transport/ws. It advertises itself over mDNS, acknowledges media
// services, drives the app's HMI level, plays received audio by presentation
// time and counts video frames.
package headunit
