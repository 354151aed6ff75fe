// Package job defines the entries of a chain and how they are resolved into
// something callable.
//
// An entry is a [Spec], one of two variants:
//
//   - [NamedUnit] references a constructor registered in a [Registry]. A
//     fresh [Unit] is built for every execution, with the chain's passable
//     arguments injected into the constructor.
//
//   - [InlineAction] wraps a function that is called directly. Its
//     parameters are resolved from the passable arguments, so it may take
//     exactly the values it needs:
//
//     job.Inline(func(ctx context.Context, u User) (bool, error) { ... })
//
// # Registry
//
// Register constructors at startup. A constructor is any function returning
// a Unit, optionally with an error:
//
//	units := job.NewRegistry()
//	units.MustRegister("mail.SendWelcome", func(u User) *SendWelcome {
//	    return &SendWelcome{user: u}
//	})
//
// # Failure Hook
//
// A unit that also implements [Failer] has its Failed method called when
// its own Handle fails.
package job
