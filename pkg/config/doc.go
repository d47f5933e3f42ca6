// Package config resolves the configuration of an acceptance run.
//
// # Overview
//
// A run is configured once, at startup, from three layered sources. For every
// option the highest-precedence source that supplies a value wins:
//
//  1. an explicit value (command line flag or options file)
//  2. the option's environment variable, when it has one
//  3. the option's static default
//
// Enumerated options are then checked against their legal set. A value
// outside the set fails with an InvalidConfigurationError before any remote
// action is taken.
//
// # Option Table
//
// All options are declared in Options. Load walks that table and feeds every
// row through Resolve, so precedence rules are uniform and enumerable:
//
//	cfg, err := config.Load(explicit, os.LookupEnv)
//	if err != nil {
//	    return err
//	}
//
// # Configuration Lifetime
//
// The resulting Configuration is read-only and passed explicitly to every
// component. The only mutable part is the host to OS family cache, which is
// filled on first use and keeps the first classification for each host.
//
// # Options File
//
// An options file carries explicit values, the SSH settings and the host
// inventory:
//
//	options:
//	  type: package
//	  database: embedded
//	ssh:
//	  user: root
//	  private_key: ~/.ssh/id_ed25519
//	hosts:
//	  - name: puppetdb1.example.com
//	    roles: [database]
//	  - name: master.example.com
//	    roles: [master]
package config
