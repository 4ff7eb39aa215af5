// Package preflight runs environment checks before conversion starts:
// directory access, free disk space, encoder availability, and TeddyCloud
// reachability when an upload target is configured.
package preflight
