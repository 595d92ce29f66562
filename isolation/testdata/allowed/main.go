// Command allowed uses only the authoring API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/c360/fnruntime/functions"
)

func main() {
	ctx := functions.WithExecutionID(context.Background(), os.Args[0])
	ectx := (&functions.EventContext{EventID: functions.ExecutionID(ctx)}).Clone()

	var v map[string]any
	err := functions.EventPayload(`{"id":1}`).Decode(&v)
	fmt.Println(ectx.EventID, v, err)
}
