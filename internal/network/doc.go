// Package network reads network descriptions for the runtime.
//
// A description lists the variables of a network (shape, element kind,
// role and optional initial data), the functions that connect them in
// execution order, and the network inputs and outputs. It is stored as YAML
// or JSON; parameter data can be inline (float32 values or float16 bit
// patterns), in named shared buffers, or in a SafeTensors file next to the
// description.
//
// Example:
//
//	version: 1
//	parameters: mlp.safetensors
//	variables:
//	  - {name: x, shape: [1, 4], role: input}
//	  - {name: w, shape: [4, 2], role: parameter}
//	  - {name: y, shape: [1, 2], role: output}
//	functions:
//	  - {name: fc, type: Affine, inputs: [x, w], outputs: [y], config: {base_axis: 1}}
//	inputs: [x]
//	outputs: [y]
package network
