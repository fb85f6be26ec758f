// Command djls is a language server and one-shot checker for Django HTML
// templates: `djls serve` speaks LSP over stdio, `djls check` walks a set
// of paths and reports diagnostics to the terminal (spec.md §1).
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
