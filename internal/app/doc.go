// Package app composes the launch layer into a running application.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models and pure arithmetic
//	│   ├── token/          # Issued tokens
//	│   ├── curve/          # Bonding-curve ledger and pricing
//	│   ├── vesting/        # Deployer vesting schedules
//	│   ├── bank/           # Collateral accounts
//	│   └── event/          # Immutable ledger events
//	├── services/           # Business logic over the stores
//	├── storage/            # Store interfaces, change sets, memory and postgres
//	├── httpapi/            # REST handlers, auth, websocket firehose
//	├── system/             # Lifecycle management
//	└── metrics/            # Prometheus instrumentation
//
// Services stage mutations on cloned state and land them through a single
// atomic ledger commit, which is also where events get their per-token
// sequence numbers.
package app
