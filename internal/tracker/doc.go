// Package tracker defines the core domain of the follow watcher: trackers and the
// accounts they watch, the collaborator interfaces the rest of the service is
// written against, the error taxonomy shared by every layer, and the tracker
// lifecycle service used by the HTTP API.
package tracker
