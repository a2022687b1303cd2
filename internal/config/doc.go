// Package config defines configuration structures for the igdl CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (IGDL_ prefix), optionally from a .env file
//   - YAML configuration file
//
// Flags override the environment, which overrides the file.
//
// # Example
//
//	api_base: https://downloader.example.com/api
//	output: ./downloads
//	method: POST
//	read_size: 64KiB
//	header_timeout: 30s
//	progress:
//	  show: true
//	  step: 2
//	  cap: 95
//	log_level: debug
//	metrics_addr: 127.0.0.1:9090
package config
