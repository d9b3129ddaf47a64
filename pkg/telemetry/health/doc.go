// Package health implements liveness and readiness checks for the metering
// service.
//
// Readiness runs every registered check concurrently, each bounded by the
// checker's timeout. The run command registers a storage check that reads
// a sentinel key from the configured backend, so a lost Redis or Postgres
// connection takes the instance out of rotation.
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("storage", engine.Ping)
//	health.Register(mux, checker, version.Version)
package health
