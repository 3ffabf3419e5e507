// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides the proxima command tree.
//
// # Commands
//
//   - proxima: the terminal UI (needs a terminal)
//   - proxima repl: a line-oriented prompt with history
//   - proxima dump: prints the ledger the backend holds for the user
//   - proxima serve: runs the development backend
//   - proxima config show|init: inspects or creates the config file
//
// Every command reads ~/.proxima/config.toml (or --config) and the
// PROXIMA_* environment overrides. glog flags such as -v and
// -logtostderr are accepted on every command.
//
// # Usage
//
//	func main() {
//	    os.Exit(cli.Execute())
//	}
package cli
