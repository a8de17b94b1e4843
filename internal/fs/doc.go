// Package fs abstracts the file operations of the local blob store so tests
// can inject failures.
//
// Production code uses [Default] ([LocalFS]). Tests wrap it in [FaultyFS]:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("snapshots/", fs.Fault{FailAfterBytes: 1024})
//	store, err := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
//
// Temporary files carry the target name as a suffix, so a rule's pattern
// matches both the temporary and the final name.
package fs
