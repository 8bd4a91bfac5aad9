// Command module packages the console plugin as a loadable module:
//
//	go build -buildmode=plugin -o plugins/console.so ./plugins/console/module
package main

import (
	"github.com/specialistvlad/tesys/pluginapi"
	"github.com/specialistvlad/tesys/plugins/console"
)

// TesysPluginCreate is the module constructor.
func TesysPluginCreate() (pluginapi.Plugin, error) { return console.Create() }

// TesysPluginDestroy is the module destructor.
func TesysPluginDestroy(p pluginapi.Plugin) { console.Destroy(p) }

func main() {}
