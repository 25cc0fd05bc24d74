// Package user stores identity-provider accounts and applies the account
// rules the sign-in and second-factor flows rely on.
//
// Backends are selected with NewUserRepository: "inmem" for tests and demos,
// "file" for a single JSON document, "postgres" for migrations/idp_db.sql.
// Every backend enforces optimistic concurrency on ConcurrencyStamp, so two
// read-modify-write sequences on the same user cannot both succeed.
//
// UserManager layers password hashing (bcrypt), lockout bookkeeping and the
// Result-style update used by the orchestrators:
//
//	manager := user.NewUserManager(repo, user.WithLockout(5, 5*time.Minute))
//	u, _ := manager.FindByID(ctx, id)
//	u.EnableFactor(user.FactorPhone)
//	if result := manager.Update(ctx, u); !result.Succeeded { ... }
package user
