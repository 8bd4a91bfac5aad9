// Command example is the demo plugin packaged as a loadable module:
//
//	go build -buildmode=plugin -o plugins/demo.so ./plugins/example
package main

import (
	"github.com/specialistvlad/tesys/pluginapi"
	"github.com/specialistvlad/tesys/plugins/example/demo"
)

// TesysPluginCreate is the module constructor.
func TesysPluginCreate() (pluginapi.Plugin, error) { return demo.Create() }

// TesysPluginDestroy is the module destructor.
func TesysPluginDestroy(p pluginapi.Plugin) { demo.Destroy(p) }

func main() {}
