// Package hcl loads host configuration written in HCL.
//
// A configuration file has at most one `peer` block and any number of
// labelled `plugin` blocks, loaded in the order they appear:
//
//	peer {
//	  tick_rate   = 60
//	  search_dirs = ["./plugins"]
//	}
//
//	plugin "demo" {
//	  settings = {
//	    greeting = "hello"
//	  }
//	}
//
// Setting values may be strings, numbers or bools; they reach the plugin as
// strings.
package hcl
