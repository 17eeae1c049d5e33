// Package watcher turns native filesystem notifications into a single ordered
// stream of Notification values.
//
// Subscribe installs watches for every root (recursively by default) using one
// of two backends: fsnotify, which emulates recursion by adding a watch for each
// directory it discovers, or rjeczalik/notify, which installs native recursive
// watches where the platform supports them. A forwarder goroutine translates
// backend events and appends them to an unbounded single-consumer queue, so the
// consumer sees events in exactly the order the backend produced them.
//
// Backend errors are delivered in-band as *NotifyError and never end the
// stream; only closing the stream (or the backend dying) does.
package watcher
