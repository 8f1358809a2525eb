package executor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/concierge-dev/concierge/api"
	"github.com/concierge-dev/concierge/events"
	"github.com/concierge-dev/concierge/internal/shorttermmemory"
	"github.com/concierge-dev/concierge/pkg/stdx"
	"github.com/concierge-dev/concierge/pkg/uuidx"
	"github.com/concierge-dev/concierge/types"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// NewRunCommand assembles a run for an agent over a thread, reporting events
// to the hook. MaxTurns defaults to unlimited.
func NewRunCommand[T any](agent api.Agent, thread *shorttermmemory.Aggregator, hook events.Hook[T]) (RunCommand[T], error) {
	var err error
	if agent == nil {
		err = errors.Join(err, errors.New("agent is required"))
	}
	if thread == nil {
		err = errors.Join(err, errors.New("thread is required"))
	}
	if hook == nil {
		err = errors.Join(err, errors.New("hook is required"))
	}

	if err != nil {
		return RunCommand[T]{}, err
	}

	return RunCommand[T]{
		id:       uuidx.New(),
		Agent:    agent,
		Thread:   thread,
		Hook:     hook,
		MaxTurns: math.MaxInt,
	}, nil
}

// RunCommand describes one run of an agent. The type parameter is the
// run's result type, matching the hook's.
type RunCommand[T any] struct {
	id               uuid.UUID
	Agent            api.Agent
	Thread           *shorttermmemory.Aggregator
	Stream           bool
	MaxTurns         int
	ContextVariables types.ContextVars
	Hook             events.Hook[T]
}

func (r *RunCommand[T]) Validate() error {
	if r.Agent == nil {
		return fmt.Errorf("agent cannot be nil")
	}
	if r.Thread == nil {
		return fmt.Errorf("thread cannot be nil")
	}
	if r.Hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}
	return nil
}

func (r *RunCommand[T]) initializeContextVars() types.ContextVars {
	if r.ContextVariables != nil {
		return maps.Clone(r.ContextVariables)
	}
	return nil
}

func (r *RunCommand[T]) ID() uuid.UUID {
	return r.id
}

func (r RunCommand[T]) WithStream(stream bool) RunCommand[T] {
	r.Stream = stream
	return r
}

func (r RunCommand[T]) WithMaxTurns(maxTurns int) RunCommand[T] {
	r.MaxTurns = maxTurns
	return r
}

func (r RunCommand[T]) WithContextVariables(contextVariables types.ContextVars) RunCommand[T] {
	r.ContextVariables = contextVariables
	return r
}

// DefaultUnmarshal converts the raw completion result into T. Strings and
// gjson results pass through untouched; everything else decodes as JSON.
func DefaultUnmarshal[T any]() func([]byte) (T, error) {
	var responseUnmarshaler func([]byte) (T, error)

	var t T
	_, isGjsonResult := any(t).(gjson.Result)
	isString := reflect.TypeFor[T]().Kind() == reflect.String

	if isGjsonResult {
		responseUnmarshaler = func(data []byte) (T, error) {
			result := gjson.ParseBytes(data)
			return any(result).(T), nil
		}
	} else if isString {
		responseUnmarshaler = func(data []byte) (T, error) {
			return any(string(data)).(T), nil
		}
	} else {
		responseUnmarshaler = func(data []byte) (T, error) {
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				return v, err
			}
			return v, nil
		}
	}
	return responseUnmarshaler
}

type CompletableFuture[T any] interface {
	Future[T]
	Promise
}

type Promise interface {
	Complete(string)
	Error(error)
}

type Future[T any] interface {
	Get() (T, error)
}

type futState struct {
	value string
	err   error
}

type futResult[T any] struct {
	result T
	err    error
	done   bool
}

type future[T any] struct {
	unmarshal func([]byte) (T, error)
	ch        chan futState
	result    atomic.Value // holds *futResult[T]
	once      sync.Once
	mu        sync.Mutex
}

// NewFuture returns a promise/future pair in one value: the executor
// completes it, the caller blocks on Get.
func NewFuture[T any](unmarshal func([]byte) (T, error)) CompletableFuture[T] {
	f := &future[T]{
		unmarshal: unmarshal,
		ch:        make(chan futState, 1),
	}
	f.result.Store(&futResult[T]{})
	return f
}

func (f *future[T]) Get() (T, error) {
	res := f.result.Load().(*futResult[T])
	if res.done {
		return res.result, res.err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	res = f.result.Load().(*futResult[T])
	if res.done {
		return res.result, res.err
	}

	r := <-f.ch
	var newResult futResult[T]
	if r.err != nil {
		newResult = futResult[T]{
			result: stdx.Zero[T](),
			err:    r.err,
			done:   true,
		}
	} else {
		result, err := f.unmarshal([]byte(r.value))
		newResult = futResult[T]{
			result: result,
			err:    err,
			done:   true,
		}
	}
	f.result.Store(&newResult)
	return newResult.result, newResult.err
}

func (f *future[T]) Complete(data string) {
	f.once.Do(func() {
		f.ch <- futState{value: data}
	})
}

func (f *future[T]) Error(err error) {
	f.once.Do(func() {
		f.ch <- futState{err: err}
	})
}

type Executor[T any] interface {
	Run(context.Context, RunCommand[T], Promise) error
}
