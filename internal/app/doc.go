// Package app composes the cooperative ledger into a running application.
//
// The package sits above the business services and is responsible for wiring
// them to storage and to the lifecycle manager. Business rules live in
// internal/app/services/; this package only assembles them.
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── member/         # Members and the capital journal
//	│   ├── contribution/   # Monthly contributions
//	│   ├── loan/           # Loans and payments
//	│   ├── dividend/       # Interest tracking and distributions
//	│   ├── withdrawal/     # Withdrawal requests
//	│   ├── revenue/        # Wallets and fee records
//	│   ├── policy/         # Business constants
//	│   └── errs/           # Error taxonomy
//	├── storage/            # Store interfaces, memory and postgres backends
//	├── services/           # Business logic, one package per concern
//	├── httpapi/            # HTTP handlers and audit trail
//	├── system/             # Lifecycle manager
//	└── metrics/            # Prometheus collectors
//
// Dependency direction: cmd/coopledger -> internal/app/runtime -> internal/app
// -> services -> storage. Services never import httpapi or runtime.
package app
