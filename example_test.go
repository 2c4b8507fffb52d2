package observable_test

import (
	"context"
	"fmt"

	"github.com/rbaliyan/observable"
)

type cache struct{}

func (c *cache) Handler(event string) observable.HandlerFunc {
	switch event {
	case "userUpdated":
		return func(ctx context.Context, args ...any) error {
			fmt.Println("invalidate", args[0])
			return nil
		}
	}
	return nil
}

func Example() {
	ctx := context.Background()
	d := observable.New(observable.WithTracing(false), observable.WithMetrics(false))
	defer d.Close(ctx)

	d.Subscribe(ctx, "User Updated", &cache{}, "a")
	d.Subscribe(ctx, "user-updated", observable.Func("userUpdated", func(ctx context.Context, args ...any) error {
		fmt.Println("audit", args[0])
		return nil
	}), "")

	d.Fire(ctx, "user updated", 42)
	// Output:
	// invalidate 42
	// audit 42
}

func ExampleDispatcher_WaitInQueue() {
	ctx := context.Background()
	d := observable.New(observable.WithTracing(false), observable.WithMetrics(false))
	defer d.Close(ctx)

	for _, name := range []string{"first", "second"} {
		name := name
		d.WaitInQueue(ctx, "job ready", observable.Func("job ready", func(ctx context.Context, args ...any) error {
			fmt.Println(name, "took", args[0])
			return nil
		}), "")
	}

	d.Fire(ctx, "job ready", "job-1")
	d.Fire(ctx, "job ready", "job-2")
	d.Fire(ctx, "job ready", "job-3")
	// Output:
	// first took job-1
	// second took job-2
}

func ExampleDispatcher_FireAsync() {
	ctx := context.Background()
	d := observable.New(observable.WithTracing(false), observable.WithMetrics(false))
	defer d.Close(ctx)

	d.Subscribe(ctx, "tick", observable.Func("tick", func(ctx context.Context, args ...any) error {
		fmt.Println("handler")
		return nil
	}), "")

	d.FireAsync(ctx, "tick")
	fmt.Println("caller")
	d.Wait(ctx)
	// Output:
	// caller
	// handler
}

func ExampleSubscribe() {
	ctx := context.Background()
	rec := observable.NewRecorder(nil)

	observable.Subscribe("Example Default", rec, "")
	observable.Fire(ctx, "example default", "hello")
	observable.Unsubscribe(rec)
	observable.Fire(ctx, "example default", "ignored")

	fmt.Println(rec.Count(), rec.Last().Args[0])
	// Output: 1 hello
}
