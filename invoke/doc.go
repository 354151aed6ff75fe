// Package invoke calls arbitrary Go functions with a loosely typed argument
// list, resolving each parameter from the list.
//
// Resolution order for every non-variadic parameter:
//
//  1. A context.Context parameter receives the caller's context.
//  2. Otherwise the first unused argument whose dynamic type is assignable
//     to the parameter type is taken.
//  3. Otherwise the next unused argument is taken positionally when it is
//     nil and the parameter is nillable, or when both are numeric and the
//     value converts without overflow, lost fraction or lost sign.
//  4. Otherwise the call fails with [ErrMissingArgument].
//
// A variadic parameter receives every remaining assignable argument. A
// trailing error result is returned as the call's error; the other results
// are returned in order.
//
//	c := invoke.New()
//	out, err := c.Call(ctx, func(ctx context.Context, o Order, n int) (bool, error) {
//	    ...
//	}, []any{3, Order{ID: "o-1"}})
package invoke
