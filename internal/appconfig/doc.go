// Package appconfig loads settings for the fleetauth terminal client.
//
// Sources, later ones overriding earlier ones:
//
//  1. Built-in defaults ([Config.LoadDefaults]).
//  2. An optional JSON file named by -c or -config.
//  3. FLEETAUTH_* environment variables.
//  4. Command-line flags.
//
// Durations in JSON are strings such as "10s" or integer nanoseconds:
//
//	{
//	  "provider_url": "https://fleet.example.co",
//	  "api_key": "anon-key",
//	  "store": "sqlite",
//	  "store_path": "/var/lib/fleetauth/state.db",
//	  "provider_timeout": "10s"
//	}
package appconfig
