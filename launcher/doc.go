// Package launcher selects and implements the execution strategy used to
// start connector processes.
//
// Two strategies exist: [DockerLauncher] runs connectors as local containers
// through the docker CLI, and [KubeLauncher] schedules them as pods through
// the Kubernetes API. [Select] picks one from the deployment environment at
// bootstrap; the choice is made once and the returned [Strategy] is immutable
// and safely shared by every handler.
//
// Callers depend only on the Strategy capability, never on the concrete
// variant.
package launcher
