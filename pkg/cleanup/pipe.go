package cleanup

import (
	"fmt"
	"reflect"

	"github.com/argus-labs/cardinal-extras/pkg/chain"
	"github.com/argus-labs/cardinal-extras/pkg/ecs"
)

type logState struct {
	ecs.BaseSystemState
}

// LogError returns a pipe stage that logs the error of a failed result with msg and passes the
// result on unchanged.
//
//	app.AddSystem(app.Update{}, chain.Pipe(chain.Pipe(loadSave, cleanup.LogError[Save]("load failed")),
//	    cleanup.Fuse[chain.Result[Save, error]]()))
func LogError[T any](msg string) ecs.System[chain.Result[T, error], chain.Result[T, error]] {
	name := fmt.Sprintf("cleanup.LogError[%s]", reflect.TypeFor[T]())
	return ecs.NewSystemWith(name, &logState{},
		func(state *logState, in chain.Result[T, error]) (chain.Result[T, error], error) {
			if err, failed := in.Error(); failed {
				state.Logger().Error().Err(err).Msg(msg)
			}
			return in, nil
		})
}

// Fuse returns a pipe stage that discards its input, turning a pipe into a schedulable system.
func Fuse[T any]() ecs.System[T, struct{}] {
	name := fmt.Sprintf("cleanup.Fuse[%s]", reflect.TypeFor[T]())
	return ecs.Func(name, func(T) (struct{}, error) {
		return struct{}{}, nil
	})
}
