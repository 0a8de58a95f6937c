package object_test

import (
	"errors"
	"fmt"

	"github.com/matzehuels/modgraph/pkg/object"
)

func ExampleObject_FullName() {
	g := object.NewGraph()
	mid, _ := g.New("a", nil)
	leaf, _ := g.New("b", nil)
	_ = mid.SetParent(g.Root().Handle())
	_ = leaf.SetParent(mid.Handle())

	fmt.Printf("%q\n", g.Root().FullName())
	fmt.Println(mid.FullName())
	fmt.Println(leaf.FullName())
	// Output:
	// ""
	// ::a
	// ::a::b
}

func ExampleObject_SetOwner() {
	g := object.NewGraph()
	node, _ := g.New("node", nil)
	ctxA, ctxB := "host-a", "host-b"

	fmt.Println(node.SetOwner(ctxA))
	fmt.Println(errors.Is(node.SetOwner(ctxB), object.ErrAlreadyOwned))
	fmt.Println(node.SetOwner(nil))
	fmt.Println(node.SetOwner(ctxB), node.Owner())
	// Output:
	// <nil>
	// true
	// <nil>
	// <nil> host-b
}

func ExampleObject_ModuleGraphLock() {
	g := object.NewGraph()
	mid, _ := g.New("a", nil)
	leaf, _ := g.New("b", nil)
	_ = mid.SetParent(g.Root().Handle())
	_ = leaf.SetParent(mid.Handle())

	lock, err := leaf.ModuleGraphLock()
	fmt.Println(lock == g.Lock(), err)

	_ = mid.SetParent(object.Nil)
	_, err = leaf.ModuleGraphLock()
	fmt.Println(errors.Is(err, object.ErrNoRoot))
	// Output:
	// true <nil>
	// true
}
