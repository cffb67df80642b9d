// Package config loads stegrelay TOML configuration files.
//
// A file has up to four sections; every one is optional and missing
// values take their defaults:
//
//	[Relay]
//	ListenAddr = "0.0.0.0:7700"
//	Noise = true
//	IdentityFile = "/var/lib/stegrelay/identity.toml"
//
//	[Client]
//	RelayAddr = "relay.example.org:7700"
//	RelayPublicKey = "8f3a..."
//	Name = "alice"
//	IdentityFile = "alice.toml"
//	Carrier = "cover.png"
//
//	[Steg]
//	CapacityPolicy = "single-plane"
//	LegacyImageFrame = false
//	DisableCompression = false
//
//	[Logging]
//	Level = "info"
package config
