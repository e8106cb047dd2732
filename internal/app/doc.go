// Package app composes the storefront: it wires the persistence layer into the
// domain services and manages the lifecycle of background components.
//
// Layout:
//
//	internal/app/
//	├── application.go   # Application struct, wiring and lifecycle
//	├── domain/          # users, products, categories, orders, payments
//	├── storage/         # store interfaces plus memory and sqlstore
//	├── services/        # business rules per domain
//	├── httpapi/         # REST routes under /api
//	├── metrics/         # Prometheus collectors
//	├── uploads/         # image storage and resizing
//	├── runtime/         # config driven process bootstrap
//	└── system/          # start/stop ordering
//
// HTTP handlers only translate requests; every rule lives in a service, and
// services only see the store interfaces.
package app
