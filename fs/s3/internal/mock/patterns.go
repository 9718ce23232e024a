package mock

import (
	"fmt"
	"math/rand"
)

// RandBytes returns size bytes of deterministic pseudo-random data.
func RandBytes(size int64) []byte {
	genr := rand.New(rand.NewSource(42))
	buf := make([]byte, size)
	if _, err := genr.Read(buf); err != nil {
		panic(err)
	}
	return buf
}

// DirectoryList returns objects simulating a directory with numFiles direct
// child files and numDirs child directories (each with a single file).
func DirectoryList(numFiles, numDirs int, prefix string) []*Object {
	if prefix == "" {
		prefix = "tmp"
	}
	if numDirs < 0 || numFiles < 0 {
		return nil
	}
	objects := make([]Object, numFiles+numDirs)
	ret := make([]*Object, len(objects))
	for i := 0; i < numDirs; i++ {
		objects[i].Key = fmt.Sprintf("%s-dir-%d/tmp.txt", prefix, i)
		objects[i].ContentLength = 1
		ret[i] = &objects[i]
	}
	for i := 0; i < numFiles; i++ {
		offset := i + numDirs
		objects[offset].Key = fmt.Sprintf("%s-file-%d.txt", prefix, i)
		objects[offset].ContentLength = 1
		ret[offset] = &objects[offset]
	}
	return ret
}
