// Package watch auto-imports policy documents from a directory.
//
// The watcher performs an initial sweep of the directory and then reacts to
// filesystem events, importing any created or modified .yaml, .yml, or .json
// document into the policy catalog. Events are debounced per path so editors
// that write in several steps trigger a single import.
//
//	watcher, err := watch.NewWatcher(loader, catalog, &watch.Config{
//	    Dir: "policies/",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go watcher.Watch(ctx)
//	defer watcher.Stop()
//
// A document that fails validation is logged and skipped; the catalog keeps
// whatever was imported before.
package watch
