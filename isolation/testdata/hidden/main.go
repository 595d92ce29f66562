// Command hidden reaches into runtime packages hidden from function code.
package main

import (
	"fmt"

	"github.com/c360/fnruntime/invoker"
)

func main() {
	_, err := invoker.New(nil)
	fmt.Println(err)
}
