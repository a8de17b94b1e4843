// Package mmap maps snapshot files read-only into memory so they can be
// decoded without an intermediate copy.
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix uses mmap(2) and madvise(2). Windows uses CreateFileMapping and
// MapViewOfFile; Advise is a no-op there.
//
// A Mapping may be read from several goroutines. Close is idempotent, but the
// slice returned by Bytes must not be touched after Close.
package mmap
