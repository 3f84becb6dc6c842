// Package logging provides a small structured-logging wrapper for the
// dependency manager engine, built on log/slog.
//
// # Usage
//
//	import "celixdm/pkg/logging"
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//	logging.Info("Bootstrap", "starting engine")
//	logging.Debug("Component", "enabling component %s", id)
//	logging.Warn("ServiceDependency", "tracker close acknowledged twice for %s", name)
//	logging.Error("Manager", err, "destroy-check re-enqueue failed for %s", id)
//
// Every call is tagged with a subsystem string so log lines can be
// filtered per engine component: "EventLoop", "ServiceDependency",
// "Component", "Manager", "ManagerMetrics", "Registry", "Bundle".
//
// Level filtering happens at the slog.Handler: a call below the
// configured level allocates nothing beyond the format check.
package logging
