// Command tscope-cabi builds a C shared library exposing the payload
// builder:
//
//	go build -buildmode=c-shared -o libtscope.so ./cmd/tscope-cabi
//
// Every function returns a JSON result string such as {"ok":true,"handle":1}
// or {"ok":false,"error":{"code":"...","message":"..."}}. The caller owns the
// returned string and must release it with tscope_string_free.
package main

/*
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/albertsgarde/transformerscope/pkg/producer"
)

var registry = producer.NewRegistry()

func result(r producer.Result) *C.char {
	return C.CString(r.JSON())
}

//export tscope_builder_new
func tscope_builder_new(numLayers, numMLPNeurons C.int) *C.char {
	return result(registry.NewBuilder(int(numLayers), int(numMLPNeurons)))
}

//export tscope_builder_set_template
func tscope_builder_set_template(h C.ulonglong, source *C.char) *C.char {
	return result(registry.SetTemplate(producer.Handle(h), C.GoString(source)))
}

//export tscope_builder_add_value
func tscope_builder_add_value(h C.ulonglong, specJSON *C.char) *C.char {
	return result(registry.AddValue(producer.Handle(h), []byte(C.GoString(specJSON))))
}

//export tscope_builder_set_rank_source
func tscope_builder_set_rank_source(h C.ulonglong, name *C.char) *C.char {
	return result(registry.SetRankSource(producer.Handle(h), C.GoString(name)))
}

//export tscope_builder_build
func tscope_builder_build(h C.ulonglong) *C.char {
	return result(registry.Build(producer.Handle(h)))
}

//export tscope_payload_info
func tscope_payload_info(h C.ulonglong) *C.char {
	return result(registry.Info(producer.Handle(h)))
}

//export tscope_payload_save
func tscope_payload_save(h C.ulonglong, path *C.char) *C.char {
	return result(registry.Save(producer.Handle(h), C.GoString(path)))
}

//export tscope_payload_load
func tscope_payload_load(path *C.char) *C.char {
	return result(registry.Load(C.GoString(path)))
}

//export tscope_payload_render_neuron
func tscope_payload_render_neuron(h C.ulonglong, layer, neuron C.int) *C.char {
	return result(registry.RenderNeuron(producer.Handle(h), int(layer), int(neuron)))
}

//export tscope_free
func tscope_free(h C.ulonglong) *C.char {
	return result(registry.Free(producer.Handle(h)))
}

//export tscope_string_free
func tscope_string_free(s *C.char) {
	C.free(unsafe.Pointer(s))
}

func main() {}
