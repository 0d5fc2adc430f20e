// Package runtime builds an executable context from a network description
// and runs forward passes over it.
//
// A Context owns every variable of the network and one allocated local
// context per function. Building it does all validation and allocation up
// front, so Forward only copies buffers and executes kernels in order:
//
//	net, err := network.Load("mlp.yaml")
//	if err != nil {
//	    return err
//	}
//	ctx, err := runtime.New(net)
//	if err != nil {
//	    return err
//	}
//	defer ctx.Close()
//
//	n, _ := ctx.OutputSize(0)
//	out := make([]float32, n)
//	err = ctx.Forward([][]float32{x}, [][]float32{out})
//
// A Context is not safe for concurrent use. Build one per goroutine.
package runtime
