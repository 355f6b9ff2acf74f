// Package cli implements pressroom-tasks, the operator task runner.
//
// # Commands
//
// tokens:clear deletes every token whose expiry has passed:
//
//	pressroom-tasks tokens:clear
//
// users:create adds an account:
//
//	pressroom-tasks users:create --username admin --email admin@example.com --password secret --role admin
//
// users:unblock clears a lockout, by username or id:
//
//	pressroom-tasks users:unblock --username alice
//	pressroom-tasks users:unblock --id 7
//
// Configuration is read the same way as the server: PRESSROOM_CONFIG names
// the YAML file and PRESSROOM_* variables override it.
package cli
